package appeal

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
)

// Status is the review state of an Appeal.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusResolved  Status = "RESOLVED"
	StatusDismissed Status = "DISMISSED"
)

// Appeal is a student's challenge of a grade. TeacherID is denormalized
// from the grade at open time so appeals can be scoped per teacher.
type Appeal struct {
	ID         string    `json:"id"`
	GradeID    string    `json:"grade_id"`
	StudentID  string    `json:"student_id"`
	TeacherID  string    `json:"teacher_id"`
	Reason     string    `json:"reason"`
	Status     Status    `json:"status"`
	Resolution string    `json:"resolution,omitempty"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// NewAppeal contains information needed to open an Appeal.
type NewAppeal struct {
	GradeID string `json:"grade_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func (na *NewAppeal) Validate(validate *validator.Validate) error {
	na.GradeID = core.CleanString(na.GradeID)
	na.Reason = core.CleanString(na.Reason)
	return validate.Struct(na)
}

// ResolveAppeal closes an Appeal. Requeue additionally sends the grade
// back to PENDING review through the grade service.
type ResolveAppeal struct {
	Resolution string `json:"resolution" validate:"required"`
	Requeue    bool   `json:"requeue"`
}

func (ra *ResolveAppeal) Validate(validate *validator.Validate) error {
	ra.Resolution = core.CleanString(ra.Resolution)
	return validate.Struct(ra)
}

type QueryFilter struct {
	GradeID   string `query:"grade_id"`
	StudentID string `query:"student_id"`
	TeacherID string `query:"teacher_id"`
	Status    Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.GradeID == "" && qf.StudentID == "" && qf.TeacherID == "" && qf.Status == ""
}
