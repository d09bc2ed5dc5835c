package grade

import "testing"

func TestSnapshotRoundTrip(t *testing.T) {
	s := Snapshot{
		Score:    87.5,
		Semester: "2025-fall",
		Metadata: map[string]interface{}{"weight": 0.4, "note": "midterm"},
	}

	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	decoded, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot() failed: %v", err)
	}
	if !s.Equal(decoded) {
		t.Errorf("round trip mismatch: %+v != %+v", s, decoded)
	}
}

func TestSnapshotEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Snapshot
		want bool
	}{
		{
			name: "identical",
			a:    Snapshot{Score: 85, Semester: "2025-fall"},
			b:    Snapshot{Score: 85, Semester: "2025-fall"},
			want: true,
		},
		{
			name: "score differs",
			a:    Snapshot{Score: 85, Semester: "2025-fall"},
			b:    Snapshot{Score: 86, Semester: "2025-fall"},
			want: false,
		},
		{
			name: "empty metadata equals nil metadata",
			a:    Snapshot{Score: 85, Semester: "2025-fall", Metadata: map[string]interface{}{}},
			b:    Snapshot{Score: 85, Semester: "2025-fall"},
			want: true,
		},
		{
			name: "metadata key order does not matter",
			a:    Snapshot{Score: 85, Metadata: map[string]interface{}{"a": 1.0, "b": 2.0}},
			b:    Snapshot{Score: 85, Metadata: map[string]interface{}{"b": 2.0, "a": 1.0}},
			want: true,
		},
		{
			name: "metadata value differs",
			a:    Snapshot{Score: 85, Metadata: map[string]interface{}{"a": 1.0}},
			b:    Snapshot{Score: 85, Metadata: map[string]interface{}{"a": 2.0}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusVerified, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusVerified, StatusPending, true},
		{StatusVerified, StatusRejected, false},
		{StatusVerified, StatusVerified, false},
		{StatusRejected, StatusPending, false},
		{StatusRejected, StatusVerified, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v; want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
