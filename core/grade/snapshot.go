package grade

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Snapshot captures the mutable content of a Grade for the audit trail.
// Encoding is deterministic: encoding/json sorts map keys, so two
// structurally equal snapshots always encode to the same bytes.
type Snapshot struct {
	Score    float64                `json:"score"`
	Semester string                 `json:"semester"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func snapshotOf(g Grade) Snapshot {
	return Snapshot{Score: g.Score, Semester: g.Semester, Metadata: g.Metadata}
}

func (s Snapshot) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "encoding snapshot")
	}
	return string(raw), nil
}

func DecodeSnapshot(raw string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding snapshot")
	}
	return s, nil
}

// Equal reports structural equality: metadata maps compare by key/value
// pairs regardless of serialization whitespace or key order, and an empty
// metadata map equals a nil one. This keeps no-op edits from producing
// spurious audit entries or re-review transitions.
func (s Snapshot) Equal(other Snapshot) bool {
	a, errA := s.Encode()
	b, errB := other.Encode()
	if errA != nil || errB != nil {
		return reflect.DeepEqual(s, other)
	}
	return a == b
}
