package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
)

var orderingParam = "ordering"

// sortable columns per resource; anything else in the ordering
// query param is dropped since fields end up in ORDER BY clauses.
var (
	userOrderFields   = []string{"name", "username", "email", "created_at", "updated_at"}
	gradeOrderFields  = []string{"student_id", "course_id", "teacher_id", "score", "status", "semester", "created_at", "updated_at"}
	appealOrderFields = []string{"grade_id", "student_id", "teacher_id", "status", "created_at", "updated_at"}
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the "ordering" query param: comma-separated field names,
// each optionally prefixed with "-" for descending. Fields not in
// allowed are ignored.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !fieldAllowed(field, allowed) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func fieldAllowed(field string, allowed []string) bool {
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}
