package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) query() []grade.Grade {
	grades := make([]grade.Grade, 0, len(repo.db.table))
	for _, g := range repo.db.table {
		grades = append(grades, *g)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].CreatedAt.Before(grades[j].CreatedAt) })
	return grades
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g.ID = uuid.New().String()
	repo.db.table[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.table[id]; ok {
		return *g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

// GetGradeForUpdate behaves like GetGrade. Serialization of the
// read-modify-write sequence comes from the transaction lock taken in
// DB.BeginTx, not from this method.
func (repo *gradeRepository) GetGradeForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	return repo.GetGrade(ctx, id, exec...)
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var grades []grade.Grade
	for _, g := range repo.query() {
		if filter == nil || matchGrade(g, filter) {
			grades = append(grades, g)
		}
	}
	return grades, nil
}

func matchGrade(g grade.Grade, filter *grade.QueryFilter) bool {
	if filter.StudentID != "" && g.StudentID != filter.StudentID {
		return false
	}
	if filter.CourseID != "" && g.CourseID != filter.CourseID {
		return false
	}
	if filter.TeacherID != "" && g.TeacherID != filter.TeacherID {
		return false
	}
	if filter.Semester != "" && g.Semester != filter.Semester {
		return false
	}
	if filter.Status != "" && g.Status != filter.Status {
		return false
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(g.CourseID), kw) ||
			strings.Contains(strings.ToLower(g.Semester), kw)) {
			return false
		}
	}
	if !filter.CreatedFrom.IsZero() && g.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && g.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[g.ID]; !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	repo.db.table[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			delete(repo.db.edits, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *gradeRepository) CountEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.edits[gradeID]), nil
}

func (repo *gradeRepository) CreateEdit(ctx context.Context, entry grade.EditHistory, exec ...core.DBExecutor) (grade.EditHistory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = uuid.New().String()
	repo.db.edits[entry.GradeID] = append(repo.db.edits[entry.GradeID], entry)
	return entry, nil
}

func (repo *gradeRepository) QueryEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]grade.EditHistory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	edits := make([]grade.EditHistory, len(repo.db.edits[gradeID]))
	copy(edits, repo.db.edits[gradeID])
	sort.Slice(edits, func(i, j int) bool { return edits[i].EditNumber < edits[j].EditNumber })
	return edits, nil
}
