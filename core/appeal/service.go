package appeal

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
)

var (
	// errors
	ErrNotFound         = errors.New("appeal not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAppealExists     = errors.New("an open appeal already exists for this grade")

	errAlreadyClosed = errors.New("appeal is already closed")
)

type (
	Repository interface {
		CreateAppeal(ctx context.Context, a Appeal, exec ...core.DBExecutor) (Appeal, error)
		GetAppeal(ctx context.Context, id string, exec ...core.DBExecutor) (Appeal, error)
		QueryAppeals(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Appeal, error)
		UpdateAppeal(ctx context.Context, a Appeal, exec ...core.DBExecutor) (Appeal, error)
	}

	Service struct {
		repo      Repository
		grades    *grade.Service
		actionLog core.ActionLogger
	}
)

func NewService(repo Repository, grades *grade.Service, actionLog core.ActionLogger) *Service {
	return &Service{repo: repo, grades: grades, actionLog: actionLog}
}

func (svc *Service) record(ctx context.Context, actor grade.Actor, action string, meta map[string]interface{}) {
	if svc.actionLog != nil {
		svc.actionLog.Record(ctx, core.ActionEntry{ActorID: actor.ID, Action: action, Metadata: meta})
	}
}

// Open files an appeal against one of the actor's own grades.
func (svc *Service) Open(ctx context.Context, actor grade.Actor, na NewAppeal) (Appeal, error) {
	if !actor.IsStudent() {
		return Appeal{}, ErrPermissionDenied
	}

	// the grade must exist and belong to the student
	g, err := svc.grades.GetByID(ctx, actor, na.GradeID)
	if err != nil {
		return Appeal{}, err
	}
	if g.StudentID != actor.ID {
		return Appeal{}, ErrPermissionDenied
	}

	open, err := svc.repo.QueryAppeals(ctx, &QueryFilter{GradeID: g.ID, Status: StatusOpen}, nil)
	if err != nil {
		return Appeal{}, errors.Wrap(err, "checking for open appeals")
	}
	if len(open) > 0 {
		return Appeal{}, core.NewValidationError(ErrAppealExists, core.FieldError{Field: "grade_id", Error: ErrAppealExists.Error()})
	}

	now := time.Now().UTC()
	a := Appeal{
		GradeID:   g.ID,
		StudentID: actor.ID,
		TeacherID: g.TeacherID,
		Reason:    na.Reason,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a, err = svc.repo.CreateAppeal(ctx, a)
	if err != nil {
		return Appeal{}, errors.Wrap(err, "creating appeal")
	}

	svc.record(ctx, actor, fmt.Sprintf("opened appeal %s on grade %s", a.ID, a.GradeID), map[string]interface{}{"appeal_id": a.ID})
	return a, nil
}

// Resolve closes an open appeal in the student's favor or not; with
// Requeue the grade goes back to PENDING review through the grade service,
// which audits the transition as usual.
func (svc *Service) Resolve(ctx context.Context, actor grade.Actor, id string, ra ResolveAppeal) (Appeal, error) {
	return svc.close(ctx, actor, id, StatusResolved, ra)
}

// Dismiss closes an open appeal without touching the grade.
func (svc *Service) Dismiss(ctx context.Context, actor grade.Actor, id, resolution string) (Appeal, error) {
	return svc.close(ctx, actor, id, StatusDismissed, ResolveAppeal{Resolution: resolution})
}

func (svc *Service) close(ctx context.Context, actor grade.Actor, id string, status Status, ra ResolveAppeal) (Appeal, error) {
	a, err := svc.repo.GetAppeal(ctx, id)
	if err != nil {
		return Appeal{}, err
	}
	if !actor.IsAdmin() && !(actor.IsTeacher() && actor.ID == a.TeacherID) {
		return Appeal{}, ErrPermissionDenied
	}
	if a.Status != StatusOpen {
		return Appeal{}, core.NewValidationError(errAlreadyClosed, core.FieldError{Field: "status", Error: errAlreadyClosed.Error()})
	}

	if status == StatusResolved && ra.Requeue {
		reason := fmt.Sprintf("appeal %s resolved: %s", a.ID, ra.Resolution)
		if _, err = svc.grades.Requeue(ctx, actor, a.GradeID, reason); err != nil {
			return Appeal{}, errors.Wrap(err, "re-queuing appealed grade")
		}
	}

	a.Status = status
	a.Resolution = ra.Resolution
	a.ResolvedBy = actor.ID
	a.UpdatedAt = time.Now().UTC()
	a, err = svc.repo.UpdateAppeal(ctx, a)
	if err != nil {
		return Appeal{}, errors.Wrap(err, "updating appeal")
	}

	svc.record(ctx, actor, fmt.Sprintf("closed appeal %s on grade %s (%s)", a.ID, a.GradeID, a.Status), map[string]interface{}{"appeal_id": a.ID})
	return a, nil
}

// GetByID returns an appeal the actor is allowed to see.
func (svc *Service) GetByID(ctx context.Context, actor grade.Actor, id string) (Appeal, error) {
	a, err := svc.repo.GetAppeal(ctx, id)
	if err != nil {
		return Appeal{}, err
	}
	if !svc.canRead(actor, a) {
		return Appeal{}, ErrNotFound
	}
	return a, nil
}

// Query lists appeals scoped to the actor: students see their own,
// teachers the appeals on grades they authored, admins everything.
func (svc *Service) Query(ctx context.Context, actor grade.Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Appeal, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	default:
		filter.StudentID = actor.ID
	}
	return svc.repo.QueryAppeals(ctx, filter, ordering)
}

func (svc *Service) canRead(actor grade.Actor, a Appeal) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsTeacher() && actor.ID == a.TeacherID {
		return true
	}
	return actor.IsStudent() && actor.ID == a.StudentID
}
