package grade

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("grade not found")
	ErrPermissionDenied = errors.New("permission denied")

	errScoreOutOfRange   = errors.New("score must be between 0 and 100")
	errIllegalTransition = errors.New("illegal status transition")
	errTeacherRequired   = errors.New("a teacher must be assigned to the grade")
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		// GetGradeForUpdate locks the Grade row until the surrounding
		// transaction ends, serializing concurrent edits to the same grade.
		GetGradeForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		// QueryGrades applies AND operation on available QueryFilter fields.
		QueryGrades(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// audit trail; append-only
		CountEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) (int, error)
		CreateEdit(ctx context.Context, entry EditHistory, exec ...core.DBExecutor) (EditHistory, error)
		QueryEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]EditHistory, error)
	}

	// Service is the sole entry point for mutating grades: every mutation is
	// permission-checked, transition-checked and audited here.
	Service struct {
		db        core.DB
		repo      Repository
		users     user.Repository
		actionLog core.ActionLogger
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	users user.Repository,
	actionLog core.ActionLogger,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{db: db, repo: repo, users: users, actionLog: actionLog, mailSvc: mailSvc, logger: logger}
}

// begin opens a transaction when a DB is wired; services constructed
// without one run with no exec override.
func (svc *Service) begin(ctx context.Context) (core.DBTransactor, []core.DBExecutor, error) {
	if svc.db == nil {
		return nil, nil, nil
	}
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "beginning transaction")
	}
	return tx, []core.DBExecutor{tx}, nil
}

func (svc *Service) warn(msg string, args ...interface{}) {
	if svc.logger != nil {
		svc.logger.Warn(msg, args...)
	}
}

func (svc *Service) record(ctx context.Context, actor Actor, action string, meta map[string]interface{}) {
	if svc.actionLog != nil {
		svc.actionLog.Record(ctx, core.ActionEntry{ActorID: actor.ID, Action: action, Metadata: meta})
	}
}

// Create registers a new Grade in PENDING status. Teachers may only create
// grades they author; admins must name the authoring teacher.
func (svc *Service) Create(ctx context.Context, actor Actor, ng NewGrade) (Grade, error) {
	if !(actor.IsAdmin() || actor.IsTeacher()) {
		return Grade{}, ErrPermissionDenied
	}
	if ng.Score < 0 || ng.Score > 100 {
		return Grade{}, core.NewValidationError(errScoreOutOfRange, core.FieldError{Field: "score", Error: errScoreOutOfRange.Error()})
	}

	teacherID := ng.TeacherID
	if !actor.IsAdmin() {
		teacherID = actor.ID
	}
	if teacherID == "" {
		return Grade{}, core.NewValidationError(errTeacherRequired, core.FieldError{Field: "teacher_id", Error: errTeacherRequired.Error()})
	}

	now := time.Now().UTC()
	g := Grade{
		StudentID: ng.StudentID,
		CourseID:  ng.CourseID,
		TeacherID: teacherID,
		Score:     ng.Score,
		Status:    StatusPending,
		Semester:  ng.Semester,
		Metadata:  ng.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g, err := svc.repo.CreateGrade(ctx, g)
	if err != nil {
		return Grade{}, errors.Wrap(err, "creating grade")
	}

	svc.record(ctx, actor, fmt.Sprintf("created grade %s (student %s, course %s, score %g)", g.ID, g.StudentID, g.CourseID, g.Score),
		map[string]interface{}{"grade_id": g.ID})
	return g, nil
}

// Edit applies a mutation to a Grade's content and/or status.
//
// Validation and permission failures are reported before any persistence
// call. An edit that changes nothing is a no-op: the current Grade is
// returned unchanged and no audit entry is created. A content edit to a
// VERIFIED grade forces it back to PENDING for re-review.
func (svc *Service) Edit(ctx context.Context, actor Actor, gradeID string, eg EditGrade) (Grade, error) {
	if eg.Score != nil && (*eg.Score < 0 || *eg.Score > 100) {
		return Grade{}, core.NewValidationError(errScoreOutOfRange, core.FieldError{Field: "score", Error: errScoreOutOfRange.Error()})
	}
	if !(actor.IsAdmin() || actor.IsTeacher()) {
		return Grade{}, ErrPermissionDenied
	}

	tx, execs, err := svc.begin(ctx)
	if err != nil {
		return Grade{}, err
	}
	rollback := func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}

	g, err := svc.repo.GetGradeForUpdate(ctx, gradeID, execs...)
	if err != nil {
		rollback()
		return Grade{}, err
	}
	if !CanEdit(actor, g) {
		rollback()
		return Grade{}, ErrPermissionDenied
	}

	oldSnap := snapshotOf(g)
	next := g
	if eg.Score != nil {
		next.Score = *eg.Score
	}
	if eg.Semester != nil {
		next.Semester = *eg.Semester
	}
	if eg.Metadata != nil {
		next.Metadata = eg.Metadata
	}
	newSnap := snapshotOf(next)

	oldRaw, err := oldSnap.Encode()
	if err != nil {
		rollback()
		return Grade{}, core.NewValidationError(err, core.FieldError{Field: "metadata", Error: "malformed metadata"})
	}
	newRaw, err := newSnap.Encode()
	if err != nil {
		rollback()
		return Grade{}, core.NewValidationError(err, core.FieldError{Field: "metadata", Error: "malformed metadata"})
	}

	contentChanged := oldRaw != newRaw
	statusRequested := eg.Status != nil && *eg.Status != g.Status

	if !contentChanged && !statusRequested {
		rollback() // nothing touched; edits that change nothing are free
		return g, nil
	}

	prevStatus := g.Status
	newStatus := prevStatus
	if statusRequested {
		// admins force-set any status; everyone else walks the state machine
		if !actor.IsAdmin() && !prevStatus.CanTransitionTo(*eg.Status) {
			rollback()
			return Grade{}, core.NewValidationError(errIllegalTransition,
				core.FieldError{Field: "status", Error: fmt.Sprintf("cannot move grade from %s to %s", prevStatus, *eg.Status)})
		}
		newStatus = *eg.Status
	}
	if contentChanged && prevStatus == StatusVerified {
		// an already-verified grade whose content changed must be re-reviewed
		newStatus = StatusPending
	}

	next.Status = newStatus
	next.UpdatedAt = time.Now().UTC()

	var editNum int
	if contentChanged {
		// the count runs outside the open transaction: a failed statement
		// inside it would abort the whole transaction, and audit numbering
		// is best-effort and must not block the primary mutation. The row
		// lock held since GetGradeForUpdate keeps the count stable.
		editNum = 1
		if cnt, cntErr := svc.repo.CountEdits(ctx, g.ID); cntErr != nil {
			svc.warn("grade edit count lookup failed; falling back to edit number 1", cntErr, g.ID)
		} else {
			editNum = cnt + 1
		}
	}

	updated, err := svc.repo.UpdateGrade(ctx, next, execs...)
	if err != nil {
		rollback()
		return Grade{}, errors.Wrap(err, "updating grade")
	}

	if contentChanged {
		reason := eg.Reason
		if reason == "" {
			reason = core.Conf.DefaultEditReason
		}
		entry := EditHistory{
			GradeID:    g.ID,
			EditorID:   actor.ID,
			EditNumber: editNum,
			OldValues:  oldRaw,
			NewValues:  newRaw,
			Reason:     reason,
			CreatedAt:  next.UpdatedAt,
		}
		if _, err = svc.repo.CreateEdit(ctx, entry, execs...); err != nil {
			rollback()
			return Grade{}, errors.Wrap(err, "appending edit history")
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return Grade{}, errors.Wrap(err, "committing grade edit")
		}
	}

	svc.record(ctx, actor, editDescription(g, updated, contentChanged, editNum), map[string]interface{}{"grade_id": g.ID})
	if newStatus != prevStatus && (newStatus == StatusVerified || newStatus == StatusRejected) {
		svc.notifyVerdict(ctx, updated)
	}
	return updated, nil
}

// Verify transitions a grade to VERIFIED.
func (svc *Service) Verify(ctx context.Context, actor Actor, gradeID, reason string) (Grade, error) {
	status := StatusVerified
	return svc.Edit(ctx, actor, gradeID, EditGrade{Status: &status, Reason: reason})
}

// Reject transitions a grade to REJECTED.
func (svc *Service) Reject(ctx context.Context, actor Actor, gradeID, reason string) (Grade, error) {
	status := StatusRejected
	return svc.Edit(ctx, actor, gradeID, EditGrade{Status: &status, Reason: reason})
}

// Requeue explicitly sends a grade back to PENDING review.
func (svc *Service) Requeue(ctx context.Context, actor Actor, gradeID, reason string) (Grade, error) {
	status := StatusPending
	return svc.Edit(ctx, actor, gradeID, EditGrade{Status: &status, Reason: reason})
}

// GetByID returns a grade the actor is allowed to see; unreadable grades
// are indistinguishable from missing ones.
func (svc *Service) GetByID(ctx context.Context, actor Actor, id string) (Grade, error) {
	g, err := svc.repo.GetGrade(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	if !CanRead(actor, g) {
		return Grade{}, ErrNotFound
	}
	return g, nil
}

// Query lists grades scoped to the actor: students see their own grades,
// teachers the grades they authored, admins everything.
func (svc *Service) Query(ctx context.Context, actor Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Grade, error) {
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
	return svc.repo.QueryGrades(ctx, filter, ordering)
}

// History returns the append-only audit trail of a grade, oldest edit first.
func (svc *Service) History(ctx context.Context, actor Actor, gradeID string) ([]EditHistory, error) {
	g, err := svc.repo.GetGrade(ctx, gradeID)
	if err != nil {
		return nil, err
	}
	if !CanRead(actor, g) {
		return nil, ErrNotFound
	}
	return svc.repo.QueryEdits(ctx, gradeID)
}

// Delete removes grades after checking the actor may delete every one of them.
func (svc *Service) Delete(ctx context.Context, actor Actor, ids ...string) error {
	for _, id := range ids {
		g, err := svc.repo.GetGrade(ctx, id)
		if err != nil {
			return err
		}
		if !CanDelete(actor, g) {
			return ErrPermissionDenied
		}
	}
	if _, err := svc.repo.DeleteGradesByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting grades")
	}
	svc.record(ctx, actor, fmt.Sprintf("deleted grades %s", strings.Join(ids, ", ")), nil)
	return nil
}

func editDescription(before, after Grade, contentChanged bool, editNum int) string {
	var parts []string
	if before.Score != after.Score {
		parts = append(parts, fmt.Sprintf("score %g -> %g", before.Score, after.Score))
	}
	if before.Semester != after.Semester {
		parts = append(parts, fmt.Sprintf("semester %q -> %q", before.Semester, after.Semester))
	}
	if before.Status != after.Status {
		parts = append(parts, fmt.Sprintf("status %s -> %s", before.Status, after.Status))
	}
	if contentChanged && len(parts) == 0 {
		parts = append(parts, "metadata updated")
	}
	desc := fmt.Sprintf("edited grade %s: %s", before.ID, strings.Join(parts, "; "))
	if contentChanged {
		desc += fmt.Sprintf(" (edit #%d)", editNum)
	}
	return desc
}

// notifyVerdict emails the student about a verification verdict.
// Fire-and-forget: lookup or delivery problems never fail the mutation.
func (svc *Service) notifyVerdict(ctx context.Context, g Grade) {
	if svc.users == nil || svc.mailSvc == nil {
		return
	}
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: g.StudentID})
	if err != nil {
		svc.warn("looking up student for grade verdict notification", err, g.ID)
		return
	}
	verdict := "verified"
	if g.Status == StatusRejected {
		verdict = "rejected"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject: fmt.Sprintf("Your grade for %s has been %s", g.CourseID, verdict),
		BodyStr: fmt.Sprintf("Your %s grade for course %s (score %g) has been %s.", g.Semester, g.CourseID, g.Score, verdict),
	})
}
