package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/appeal"
)

const appealColumns = `id, grade_id, student_id, teacher_id, reason, status, resolution, resolved_by, created_at, updated_at`

type appealRepository struct {
	exec core.DBExecutor
}

var _ appeal.Repository = (*appealRepository)(nil) // interface compliance check

func NewAppealRepository(exec core.DBExecutor) *appealRepository {
	return &appealRepository{exec: exec}
}

func (repo appealRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type appealRow struct {
	ID         string
	GradeID    string
	StudentID  string
	TeacherID  string
	Reason     null.String
	Status     string
	Resolution null.String
	ResolvedBy null.String
	CreatedAt  null.Time
	UpdatedAt  null.Time
}

func (r *appealRow) scan(s interface{ Scan(...interface{}) error }) error {
	return s.Scan(&r.ID, &r.GradeID, &r.StudentID, &r.TeacherID, &r.Reason, &r.Status,
		&r.Resolution, &r.ResolvedBy, &r.CreatedAt, &r.UpdatedAt)
}

func (r appealRow) unpack() appeal.Appeal {
	return appeal.Appeal{
		ID:         r.ID,
		GradeID:    r.GradeID,
		StudentID:  r.StudentID,
		TeacherID:  r.TeacherID,
		Reason:     r.Reason.String,
		Status:     appeal.Status(r.Status),
		Resolution: r.Resolution.String,
		ResolvedBy: r.ResolvedBy.String,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
}

func packAppeal(a appeal.Appeal) appealRow {
	return appealRow{
		ID:         a.ID,
		GradeID:    a.GradeID,
		StudentID:  a.StudentID,
		TeacherID:  a.TeacherID,
		Reason:     null.NewString(a.Reason, a.Reason != ""),
		Status:     string(a.Status),
		Resolution: null.NewString(a.Resolution, a.Resolution != ""),
		ResolvedBy: null.NewString(a.ResolvedBy, a.ResolvedBy != ""),
		CreatedAt:  null.NewTime(a.CreatedAt.UTC(), !a.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(a.UpdatedAt.UTC(), !a.UpdatedAt.IsZero()),
	}
}

// trapNoRowsErr maps psql "no rows" err to appeal.ErrNotFound
func (repo appealRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return appeal.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo appealRepository) CreateAppeal(ctx context.Context, a appeal.Appeal, exec ...core.DBExecutor) (appeal.Appeal, error) {
	a.ID = uuid.New().String()
	r := packAppeal(a)
	query := `INSERT INTO appeal (` + appealColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := repo.getExec(exec).ExecContext(ctx, query,
		r.ID, r.GradeID, r.StudentID, r.TeacherID, r.Reason, r.Status, r.Resolution, r.ResolvedBy, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return appeal.Appeal{}, errors.Wrap(err, "inserting appeal")
	}
	return a, nil
}

func (repo appealRepository) GetAppeal(ctx context.Context, id string, exec ...core.DBExecutor) (appeal.Appeal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return appeal.Appeal{}, appeal.ErrNotFound
	}
	var r appealRow
	row := repo.getExec(exec).QueryRowContext(ctx, `SELECT `+appealColumns+` FROM appeal WHERE id = $1`, id)
	if err := r.scan(row); err != nil {
		return appeal.Appeal{}, repo.trapNoRowsErr(err, "finding appeal")
	}
	return r.unpack(), nil
}

func (repo appealRepository) QueryAppeals(ctx context.Context, filter *appeal.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]appeal.Appeal, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.GradeID != "" {
			where = append(where, "grade_id = "+arg(filter.GradeID))
		}
		if filter.StudentID != "" {
			where = append(where, "student_id = "+arg(filter.StudentID))
		}
		if filter.TeacherID != "" {
			where = append(where, "teacher_id = "+arg(filter.TeacherID))
		}
		if filter.Status != "" {
			where = append(where, "status = "+arg(string(filter.Status)))
		}
	}

	query := `SELECT ` + appealColumns + ` FROM appeal`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += core.OrderByClause(ordering, "created_at DESC")

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying appeals")
	}
	defer func() { _ = rows.Close() }()

	var appeals []appeal.Appeal
	for rows.Next() {
		var r appealRow
		if err = r.scan(rows); err != nil {
			return nil, errors.Wrap(err, "scanning appeal")
		}
		appeals = append(appeals, r.unpack())
	}
	return appeals, errors.Wrap(rows.Err(), "querying appeals")
}

func (repo appealRepository) UpdateAppeal(ctx context.Context, a appeal.Appeal, exec ...core.DBExecutor) (appeal.Appeal, error) {
	r := packAppeal(a)
	query := `UPDATE appeal SET status = $2, resolution = $3, resolved_by = $4, updated_at = $5 WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query, r.ID, r.Status, r.Resolution, r.ResolvedBy, r.UpdatedAt)
	if err != nil {
		return appeal.Appeal{}, errors.Wrap(err, "updating appeal")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return appeal.Appeal{}, appeal.ErrNotFound
	}
	return a, nil
}
