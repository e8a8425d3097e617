package results

import (
	"errors"
	"testing"
	"time"

	"drivelogic-hq/reasoner/pkg/engine"
)

func TestFromResult(t *testing.T) {
	res := &engine.Result{
		SceneID:     "scene_1",
		Fired:       []engine.FiredRule{{RuleID: 58, Action: "stop"}},
		Intentions:  []string{"go_straight"},
		Fingerprint: "abc",
		CacheKey:    "key",
		Overridden:  true,
		Duration:    time.Millisecond,
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	rec := FromResult("run", res, at)

	if rec.ID == "" || rec.ID == FromResult("run", res, at).ID {
		t.Error("record ids must be unique")
	}
	if rec.SceneID != "scene_1" || rec.Fingerprint != "abc" || rec.CacheKey != "key" || rec.RunID != "run" {
		t.Errorf("identity fields = %+v", rec)
	}
	if !rec.Overridden || rec.Defaulted || rec.Failed() {
		t.Errorf("flags = %+v", rec)
	}
	if rec.EvaluatedAt.Location() != time.UTC {
		t.Errorf("EvaluatedAt not UTC: %v", rec.EvaluatedAt)
	}

	res.Fired[0].RuleID = 1
	if rec.Fired[0].RuleID != 58 {
		t.Error("record shares the result's fired slice")
	}
}

func TestFromError(t *testing.T) {
	rec := FromError("run", "scene_9", "abc", errors.New("wrong arity"), time.Now())

	if !rec.Failed() || rec.Error != "wrong arity" {
		t.Errorf("Error = %q", rec.Error)
	}
	if rec.Fired == nil || len(rec.Fired) != 0 {
		t.Errorf("Fired = %#v, want empty", rec.Fired)
	}
}

func TestQuery_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name      string
		query     Query
		wantField string
	}{
		{"zero", Query{}, ""},
		{"full", Query{StartTime: &earlier, EndTime: &now, Status: StatusError, SortOrder: "asc", Limit: 5}, ""},
		{"negative limit", Query{Limit: -1}, "limit"},
		{"negative offset", Query{Offset: -1}, "offset"},
		{"bad status", Query{Status: "blocked"}, "status"},
		{"bad order", Query{SortOrder: "up"}, "sort_order"},
		{"inverted range", Query{StartTime: &now, EndTime: &earlier}, "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var qe *QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("Validate() error = %v, want QueryError", err)
			}
			if qe.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", qe.Field, tt.wantField)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{
		SceneID:     "s1",
		RunID:       "r1",
		Fingerprint: "fp",
		Fired:       []engine.FiredRule{{RuleID: 3}, {RuleID: 17}},
		EvaluatedAt: at,
	}
	rule17, rule4 := 17, 4
	after := at.Add(time.Second)

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"empty", Query{}, true},
		{"scene", Query{SceneID: "s1"}, true},
		{"other scene", Query{SceneID: "s2"}, false},
		{"run", Query{RunID: "r2"}, false},
		{"fired rule", Query{RuleID: &rule17}, true},
		{"rule not fired", Query{RuleID: &rule4}, false},
		{"before start", Query{StartTime: &after}, false},
		{"end inclusive", Query{EndTime: &at}, true},
		{"success", Query{Status: StatusSuccess}, true},
		{"error", Query{Status: StatusError}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	err := NewStorageError("sqlite", "put", ErrClosed)
	if !errors.Is(err, ErrClosed) {
		t.Error("StorageError does not unwrap to its cause")
	}
	want := "storage error [backend=sqlite, operation=put]: result store is closed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
