package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
)

const (
	gradeColumns = `id, student_id, course_id, teacher_id, score, status, semester, metadata, created_at, updated_at`
	editColumns  = `id, grade_id, editor_id, edit_number, old_values, new_values, reason, created_at`
)

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{exec: exec}
}

func (repo gradeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type gradeRow struct {
	ID        string
	StudentID string
	CourseID  string
	TeacherID string
	Score     float64
	Status    string
	Semester  null.String
	Metadata  null.Bytes
	CreatedAt null.Time
	UpdatedAt null.Time
}

func (r *gradeRow) scan(s interface{ Scan(...interface{}) error }) error {
	return s.Scan(&r.ID, &r.StudentID, &r.CourseID, &r.TeacherID, &r.Score, &r.Status,
		&r.Semester, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
}

func (r gradeRow) unpack() (grade.Grade, error) {
	g := grade.Grade{
		ID:        r.ID,
		StudentID: r.StudentID,
		CourseID:  r.CourseID,
		TeacherID: r.TeacherID,
		Score:     r.Score,
		Status:    grade.Status(r.Status),
		Semester:  r.Semester.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if len(r.Metadata.Bytes) > 0 {
		if err := json.Unmarshal(r.Metadata.Bytes, &g.Metadata); err != nil {
			return grade.Grade{}, errors.Wrap(err, "decoding grade metadata")
		}
	}
	return g, nil
}

func packGrade(g grade.Grade) (gradeRow, error) {
	r := gradeRow{
		ID:        g.ID,
		StudentID: g.StudentID,
		CourseID:  g.CourseID,
		TeacherID: g.TeacherID,
		Score:     g.Score,
		Status:    string(g.Status),
		Semester:  null.NewString(g.Semester, g.Semester != ""),
		CreatedAt: null.NewTime(g.CreatedAt.UTC(), !g.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(g.UpdatedAt.UTC(), !g.UpdatedAt.IsZero()),
	}
	if g.Metadata != nil {
		raw, err := json.Marshal(g.Metadata)
		if err != nil {
			return gradeRow{}, errors.Wrap(err, "encoding grade metadata")
		}
		r.Metadata = null.BytesFrom(raw)
	}
	return r, nil
}

// trapNoRowsErr maps psql "no rows" err to grade.ErrNotFound
func (repo gradeRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return grade.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	g.ID = uuid.New().String()
	r, err := packGrade(g)
	if err != nil {
		return grade.Grade{}, err
	}
	query := `INSERT INTO grade (` + gradeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err = repo.getExec(exec).ExecContext(ctx, query,
		r.ID, r.StudentID, r.CourseID, r.TeacherID, r.Score, r.Status, r.Semester, r.Metadata, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo gradeRepository) getGrade(ctx context.Context, id, suffix string, exec []core.DBExecutor) (grade.Grade, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grade.Grade{}, grade.ErrNotFound
	}
	var r gradeRow
	row := repo.getExec(exec).QueryRowContext(ctx, `SELECT `+gradeColumns+` FROM grade WHERE id = $1`+suffix, id)
	if err := r.scan(row); err != nil {
		return grade.Grade{}, repo.trapNoRowsErr(err, "finding grade")
	}
	return r.unpack()
}

func (repo gradeRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	return repo.getGrade(ctx, id, "", exec)
}

// GetGradeForUpdate locks the grade row until the surrounding transaction
// ends, serializing concurrent edits to the same grade.
func (repo gradeRepository) GetGradeForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	return repo.getGrade(ctx, id, " FOR UPDATE", exec)
}

func (repo gradeRepository) QueryGrades(ctx context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]grade.Grade, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.StudentID != "" {
			where = append(where, "student_id = "+arg(filter.StudentID))
		}
		if filter.CourseID != "" {
			where = append(where, "course_id = "+arg(filter.CourseID))
		}
		if filter.TeacherID != "" {
			where = append(where, "teacher_id = "+arg(filter.TeacherID))
		}
		if filter.Semester != "" {
			where = append(where, "semester = "+arg(filter.Semester))
		}
		if filter.Status != "" {
			where = append(where, "status = "+arg(string(filter.Status)))
		}
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(course_id ILIKE %s OR semester ILIKE %s)", p, p))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	query := `SELECT ` + gradeColumns + ` FROM grade`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += core.OrderByClause(ordering, "created_at DESC")

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	defer func() { _ = rows.Close() }()

	var grades []grade.Grade
	for rows.Next() {
		var r gradeRow
		if err = r.scan(rows); err != nil {
			return nil, errors.Wrap(err, "scanning grade")
		}
		g, err := r.unpack()
		if err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, errors.Wrap(rows.Err(), "querying grades")
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	r, err := packGrade(g)
	if err != nil {
		return grade.Grade{}, err
	}
	query := `UPDATE grade SET student_id = $2, course_id = $3, teacher_id = $4, score = $5,
		status = $6, semester = $7, metadata = $8, updated_at = $9 WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		r.ID, r.StudentID, r.CourseID, r.TeacherID, r.Score, r.Status, r.Semester, r.Metadata, r.UpdatedAt,
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return grade.Grade{}, grade.ErrNotFound
	}
	return g, nil
}

func (repo gradeRepository) DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM grade WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting grades")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting grades")
	}
	return int(cnt), nil
}

func (repo gradeRepository) CountEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	row := repo.getExec(exec).QueryRowContext(ctx, `SELECT COUNT(*) FROM grade_edit_history WHERE grade_id = $1`, gradeID)
	if err := row.Scan(&cnt); err != nil {
		return 0, errors.Wrap(err, "counting grade edits")
	}
	return cnt, nil
}

func (repo gradeRepository) CreateEdit(ctx context.Context, entry grade.EditHistory, exec ...core.DBExecutor) (grade.EditHistory, error) {
	entry.ID = uuid.New().String()
	query := `INSERT INTO grade_edit_history (` + editColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := repo.getExec(exec).ExecContext(ctx, query,
		entry.ID, entry.GradeID, entry.EditorID, entry.EditNumber, entry.OldValues, entry.NewValues,
		null.NewString(entry.Reason, entry.Reason != ""), entry.CreatedAt.UTC(),
	); err != nil {
		return grade.EditHistory{}, errors.Wrap(err, "inserting grade edit")
	}
	return entry, nil
}

func (repo gradeRepository) QueryEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]grade.EditHistory, error) {
	query := `SELECT ` + editColumns + ` FROM grade_edit_history WHERE grade_id = $1 ORDER BY edit_number ASC, created_at ASC`
	rows, err := repo.getExec(exec).QueryContext(ctx, query, gradeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade edits")
	}
	defer func() { _ = rows.Close() }()

	var edits []grade.EditHistory
	for rows.Next() {
		var entry grade.EditHistory
		var reason null.String
		var createdAt null.Time
		if err = rows.Scan(&entry.ID, &entry.GradeID, &entry.EditorID, &entry.EditNumber,
			&entry.OldValues, &entry.NewValues, &reason, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scanning grade edit")
		}
		entry.Reason = reason.String
		entry.CreatedAt = createdAt.Time
		edits = append(edits, entry)
	}
	return edits, errors.Wrap(rows.Err(), "querying grade edits")
}
