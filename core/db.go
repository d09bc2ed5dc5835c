package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB begins transactions whose lifecycle the caller controls. Backends
	// without native transactions serialize writers for the duration of the
	// transaction instead.
	DB interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// DBOrdering is a single ORDER BY term. Field must be a known column name;
// it is interpolated into SQL as-is and must never come from user input
// unvalidated.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings as an " ORDER BY ..." suffix,
// falling back to defaultOrder when none are given. It returns ""
// if there is no ordering at all.
func OrderByClause(orderings []DBOrdering, defaultOrder string) string {
	if len(orderings) == 0 {
		if defaultOrder == "" {
			return ""
		}
		return " ORDER BY " + defaultOrder
	}
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		terms = append(terms, ord.String())
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}
