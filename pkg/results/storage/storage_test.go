package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) results.Store {
	t.Helper()

	s, err := NewSQLiteStore(config.SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "results.db"),
		Driver:       "sqlite",
		MaxOpenConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(t *testing.T) results.Store {
	t.Helper()
	s := NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

var backends = []struct {
	name string
	open func(t *testing.T) results.Store
}{
	{"memory", newMemory},
	{"sqlite", newSQLite},
}

func record(id, scene, fp string, at time.Time, ruleIDs ...int) *results.Record {
	fired := make([]engine.FiredRule, 0, len(ruleIDs))
	for _, r := range ruleIDs {
		fired = append(fired, engine.FiredRule{RuleID: r, Action: fmt.Sprintf("act_%d", r)})
	}
	return &results.Record{
		ID:          id,
		RunID:       "run-1",
		SceneID:     scene,
		Fingerprint: fp,
		CacheKey:    "key-" + fp,
		Fired:       fired,
		Intentions:  []string{"go_straight"},
		EvaluatedAt: at,
		Duration:    3 * time.Millisecond,
	}
}

func seed(t *testing.T, s results.Store) {
	t.Helper()
	ctx := context.Background()

	recs := []*results.Record{
		record("a", "scene_1", "fp1", base, 3, 17),
		record("b", "scene_1", "fp1", base.Add(time.Minute), 17),
		record("c", "scene_2", "fp1", base.Add(2*time.Minute), 58),
		record("d", "scene_2", "fp2", base.Add(3*time.Minute), 5),
	}
	failed := record("e", "scene_3", "fp1", base.Add(4*time.Minute))
	failed.Error = "scene_3: intention 0: wrong arity"
	recs = append(recs, failed)

	for _, r := range recs {
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Put(%s) error = %v", r.ID, err)
		}
	}
}

func ids(recs []*results.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_PutAndLatest(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			seed(t, s)
			ctx := context.Background()

			got, err := s.Latest(ctx, "scene_1", "key-fp1")
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			if got.ID != "b" {
				t.Errorf("Latest() id = %q, want b", got.ID)
			}
			if len(got.Fired) != 1 || got.Fired[0] != (engine.FiredRule{RuleID: 17, Action: "act_17"}) {
				t.Errorf("Latest() fired = %+v", got.Fired)
			}
			if !got.EvaluatedAt.Equal(base.Add(time.Minute)) {
				t.Errorf("EvaluatedAt = %v", got.EvaluatedAt)
			}
			if got.Duration != 3*time.Millisecond {
				t.Errorf("Duration = %v", got.Duration)
			}

			if _, err := s.Latest(ctx, "scene_1", "key-fp2"); !errors.Is(err, results.ErrNotFound) {
				t.Errorf("Latest(other cache key) error = %v, want ErrNotFound", err)
			}
			if _, err := s.Latest(ctx, "scene_1", ""); !errors.Is(err, results.ErrNotFound) {
				t.Errorf("Latest(empty key) error = %v, want ErrNotFound", err)
			}
			// Failed evaluations are never reused.
			if _, err := s.Latest(ctx, "scene_3", "key-fp1"); !errors.Is(err, results.ErrNotFound) {
				t.Errorf("Latest(failed scene) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_Query(t *testing.T) {
	rule17 := 17
	start := base.Add(time.Minute)
	end := base.Add(3 * time.Minute)

	tests := []struct {
		name  string
		query results.Query
		want  []string
	}{
		{"all newest first", results.Query{}, []string{"e", "d", "c", "b", "a"}},
		{"ascending", results.Query{SortOrder: "asc"}, []string{"a", "b", "c", "d", "e"}},
		{"by scene", results.Query{SceneID: "scene_2"}, []string{"d", "c"}},
		{"by fingerprint", results.Query{Fingerprint: "fp2"}, []string{"d"}},
		{"by rule", results.Query{RuleID: &rule17}, []string{"b", "a"}},
		{"time range", results.Query{StartTime: &start, EndTime: &end}, []string{"d", "c", "b"}},
		{"errors only", results.Query{Status: results.StatusError}, []string{"e"}},
		{"success only", results.Query{Status: results.StatusSuccess, Limit: 2}, []string{"d", "c"}},
		{"offset", results.Query{Limit: 2, Offset: 3}, []string{"b", "a"}},
		{"offset past end", results.Query{Offset: 10}, []string{}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					q := tt.query
					got, err := s.Query(context.Background(), &q)
					if err != nil {
						t.Fatalf("Query() error = %v", err)
					}
					if !equalStrings(ids(got), tt.want) {
						t.Errorf("Query() = %v, want %v", ids(got), tt.want)
					}
				})
			}
		})
	}
}

func TestStore_CountAndDelete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			seed(t, s)
			ctx := context.Background()

			n, err := s.Count(ctx, &results.Query{Fingerprint: "fp1"})
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != 4 {
				t.Errorf("Count(fp1) = %d, want 4", n)
			}

			cutoff := base.Add(90 * time.Second)
			deleted, err := s.Delete(ctx, &results.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("Delete() = %d, want 2", deleted)
			}

			n, err = s.Count(ctx, &results.Query{})
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != 3 {
				t.Errorf("Count() after delete = %d, want 3", n)
			}
		})
	}
}

func TestStore_InvalidQuery(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)

			_, err := s.Query(context.Background(), &results.Query{Status: "blocked"})
			var qe *results.QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("Query() error = %v, want QueryError", err)
			}
			if qe.Field != "status" {
				t.Errorf("Field = %q, want status", qe.Field)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			if err := s.Ping(context.Background()); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			err := s.Put(context.Background(), record("x", "s", "fp", base))
			if !errors.Is(err, results.ErrClosed) {
				t.Errorf("Put() after Close error = %v, want ErrClosed", err)
			}
			var se *results.StorageError
			if !errors.As(err, &se) || se.Backend != b.name {
				t.Errorf("error = %v, want StorageError for %s", err, b.name)
			}
			if err := s.Ping(context.Background()); err == nil {
				t.Error("Ping() after Close succeeded")
			}
		})
	}
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := record("a", "scene_1", "fp1", base, 3)
	if err := s.Put(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Fired[0].RuleID = 99

	got, err := s.Latest(ctx, "scene_1", "key-fp1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Fired[0].RuleID != 3 {
		t.Errorf("stored record changed with caller's slice: %+v", got.Fired)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	cfg := config.SQLiteConfig{Path: path, Driver: "sqlite", MaxOpenConns: 1}

	s, err := NewSQLiteStore(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), record("a", "scene_1", "fp1", base, 3)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(cfg, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Latest(context.Background(), "scene_1", "key-fp1")
	if err != nil {
		t.Fatalf("Latest() after reopen error = %v", err)
	}
	if got.ID != "a" {
		t.Errorf("id = %q, want a", got.ID)
	}
}

func TestSQLiteStore_UpgradesVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE results (
			id TEXT PRIMARY KEY, run_id TEXT NOT NULL, scene_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL, fired TEXT NOT NULL, rule_ids TEXT NOT NULL,
			intentions TEXT NOT NULL, defaulted INTEGER NOT NULL, overridden INTEGER NOT NULL,
			error TEXT, evaluated_at INTEGER NOT NULL, duration INTEGER NOT NULL
		);
		CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TIMESTAMP NOT NULL);
		INSERT INTO schema_version VALUES (1, datetime('now'));
		INSERT INTO results VALUES ('old', 'run-0', 'scene_1', 'fp1', '[]', ',', '[]', 0, 0, NULL, 1, 1);
	`)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewSQLiteStore(config.SQLiteConfig{Path: path, Driver: "sqlite", MaxOpenConns: 1}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() on version 1 database error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	old, err := s.Query(ctx, &results.Query{SceneID: "scene_1"})
	if err != nil || len(old) != 1 || old[0].CacheKey != "" {
		t.Fatalf("Query() = %+v, %v; want the old record with an empty key", old, err)
	}
	if err := s.Put(ctx, record("new", "scene_1", "fp1", base, 3)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Latest(ctx, "scene_1", "key-fp1")
	if err != nil || got.ID != "new" {
		t.Errorf("Latest() = %+v, %v; want record new", got, err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ResultsConfig
		wantErr bool
	}{
		{"memory", config.ResultsConfig{Backend: "memory"}, false},
		{"sqlite", config.ResultsConfig{Backend: "sqlite", SQLite: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "r.db"), Driver: "sqlite",
		}}, false},
		{"unknown", config.ResultsConfig{Backend: "postgres"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}
