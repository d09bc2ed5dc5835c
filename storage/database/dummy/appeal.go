package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/appeal"
)

type appealRepository struct {
	db *appealTable
}

var _ appeal.Repository = (*appealRepository)(nil) // interface compliance check

func NewAppealRepository(db *DB) appeal.Repository {
	return &appealRepository{db: db.appeal}
}

func (repo *appealRepository) query() []appeal.Appeal {
	appeals := make([]appeal.Appeal, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		appeals = append(appeals, *a)
	}
	sort.Slice(appeals, func(i, j int) bool { return appeals[i].CreatedAt.Before(appeals[j].CreatedAt) })
	return appeals
}

func (repo *appealRepository) CreateAppeal(ctx context.Context, a appeal.Appeal, exec ...core.DBExecutor) (appeal.Appeal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *appealRepository) GetAppeal(ctx context.Context, id string, exec ...core.DBExecutor) (appeal.Appeal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return appeal.Appeal{}, appeal.ErrNotFound
}

func (repo *appealRepository) QueryAppeals(ctx context.Context, filter *appeal.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]appeal.Appeal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var appeals []appeal.Appeal
	for _, a := range repo.query() {
		if filter == nil || matchAppeal(a, filter) {
			appeals = append(appeals, a)
		}
	}
	return appeals, nil
}

func matchAppeal(a appeal.Appeal, filter *appeal.QueryFilter) bool {
	if filter.GradeID != "" && a.GradeID != filter.GradeID {
		return false
	}
	if filter.StudentID != "" && a.StudentID != filter.StudentID {
		return false
	}
	if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
		return false
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	return true
}

func (repo *appealRepository) UpdateAppeal(ctx context.Context, a appeal.Appeal, exec ...core.DBExecutor) (appeal.Appeal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return appeal.Appeal{}, appeal.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}
