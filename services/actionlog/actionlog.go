package actionlogsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
)

// ConsoleLogger writes action entries to the app logger. Used in
// development and as a fallback when no database is wired.
type ConsoleLogger struct {
	logger core.Logger
}

var _ core.ActionLogger = (*ConsoleLogger)(nil)

func NewConsoleLogger(logger core.Logger) *ConsoleLogger {
	return &ConsoleLogger{logger: logger}
}

func (l ConsoleLogger) Record(ctx context.Context, entry core.ActionEntry) {
	l.logger.Info(fmt.Sprintf("action: %s (actor %s)", entry.Action, entry.ActorID), entry.Metadata)
}

// DatabaseLogger persists action entries in the action_log table.
// Recording is best-effort: failures are logged, never propagated.
type DatabaseLogger struct {
	exec   core.DBExecutor
	logger core.Logger
}

var _ core.ActionLogger = (*DatabaseLogger)(nil)

func NewDatabaseLogger(exec core.DBExecutor, logger core.Logger) *DatabaseLogger {
	return &DatabaseLogger{exec: exec, logger: logger}
}

func (l DatabaseLogger) Record(ctx context.Context, entry core.ActionEntry) {
	var meta interface{}
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			l.logger.Warn("encoding action metadata", err)
		} else {
			meta = raw
		}
	}

	query := `INSERT INTO action_log (id, actor_id, action, metadata, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := l.exec.ExecContext(ctx, query,
		uuid.New().String(), entry.ActorID, entry.Action, meta, time.Now().UTC(),
	); err != nil {
		l.logger.Warn("recording action", err, entry.Action)
	}
}
