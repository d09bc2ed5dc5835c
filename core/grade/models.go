package grade

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

// Status is the review state of a Grade.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

// CanTransitionTo reports whether the regular (non-admin) state machine
// allows moving from s to next. Admins bypass this check entirely.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusVerified || next == StatusRejected
	case StatusVerified:
		return next == StatusPending // re-review after a content edit
	}
	return false
}

// Grade links one student, one course and the teacher who authored the score.
type Grade struct {
	ID        string                 `json:"id"`
	StudentID string                 `json:"student_id"`
	CourseID  string                 `json:"course_id"`
	TeacherID string                 `json:"teacher_id"`
	Score     float64                `json:"score"`
	Status    Status                 `json:"status"`
	Semester  string                 `json:"semester"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"` // UTC
	UpdatedAt time.Time              `json:"updated_at"` // UTC
}

// EditHistory is an immutable audit trail entry documenting one content edit.
// Entries are append-only: never mutated or deleted.
type EditHistory struct {
	ID         string    `json:"id"`
	GradeID    string    `json:"grade_id"`
	EditorID   string    `json:"editor_id"`
	EditNumber int       `json:"edit_number"` // 1-based, monotonically increasing per grade
	OldValues  string    `json:"old_values"`
	NewValues  string    `json:"new_values"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// Actor is the identity and roles of whoever is requesting a mutation.
type Actor struct {
	ID    string
	Roles []string
}

func NewActor(usr user.User) Actor {
	return Actor{ID: usr.ID, Roles: usr.Roles}
}

func (a Actor) roleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if len(role) >= len(prefix) && role[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool   { return a.roleStartsWith(user.RoleAdmin) }
func (a Actor) IsTeacher() bool { return a.roleStartsWith(user.RoleTeacher) }
func (a Actor) IsStudent() bool { return a.roleStartsWith(user.RoleStudent) }

// NewGrade contains information needed to create a new Grade.
type NewGrade struct {
	StudentID string                 `json:"student_id" validate:"required"`
	CourseID  string                 `json:"course_id" validate:"required"`
	TeacherID string                 `json:"teacher_id"`
	Score     float64                `json:"score" validate:"gte=0,lte=100"`
	Semester  string                 `json:"semester" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.StudentID = core.CleanString(ng.StudentID)
	ng.CourseID = core.CleanString(ng.CourseID)
	ng.TeacherID = core.CleanString(ng.TeacherID)
	ng.Semester = core.CleanString(ng.Semester)
	return validate.Struct(ng)
}

// EditGrade defines what may be changed on an existing Grade. Nil fields
// are left untouched.
type EditGrade struct {
	Score    *float64               `json:"score" validate:"omitempty,gte=0,lte=100"`
	Semester *string                `json:"semester"`
	Metadata map[string]interface{} `json:"metadata"`
	Status   *Status                `json:"status" validate:"omitempty,oneof=PENDING VERIFIED REJECTED"`
	Reason   string                 `json:"reason"`
}

func (eg *EditGrade) Validate(validate *validator.Validate) error {
	eg.Reason = core.CleanString(eg.Reason)
	if eg.Semester != nil {
		s := core.CleanString(*eg.Semester)
		eg.Semester = &s
	}
	return validate.Struct(eg)
}

type QueryFilter struct {
	StudentID   string    `query:"student_id"`
	CourseID    string    `query:"course_id"`
	TeacherID   string    `query:"teacher_id"`
	Semester    string    `query:"semester"`
	Status      Status    `query:"status"`
	Search      string    `query:"search"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.TeacherID == "" &&
		qf.Semester == "" && qf.Status == "" && qf.Search == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Semester = core.CleanString(qf.Semester)
}
