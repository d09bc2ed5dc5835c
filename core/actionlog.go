package core

import "context"

// ActionEntry is a human-readable record of something an actor did.
type ActionEntry struct {
	ActorID  string
	Action   string
	Metadata map[string]interface{}
}

// ActionLogger receives action descriptions for the system log.
// Implementations are fire-and-forget: a failure to record must never
// fail the mutation that produced the entry.
type ActionLogger interface {
	Record(ctx context.Context, entry ActionEntry)
}
