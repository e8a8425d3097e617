package results

import (
	"context"
	"io"
	"time"

	"drivelogic-hq/reasoner/pkg/engine"
)

// Record is the stored outcome of evaluating one scene against one rule
// base. Failed evaluations are stored too, with Error set and no actions.
type Record struct {
	ID    string `json:"id"`     // UUID v4
	RunID string `json:"run_id"` // batch run or HTTP request

	SceneID     string `json:"scene_id"`
	Fingerprint string `json:"fingerprint"` // rule base fingerprint

	// CacheKey is engine.Result.CacheKey: rule base, policy and scene
	// content. Empty on failed evaluations.
	CacheKey string `json:"cache_key,omitempty"`

	Fired      []engine.FiredRule `json:"actions_to_take"`
	Intentions []string           `json:"intention"`
	Defaulted  bool               `json:"defaulted"`
	Overridden bool               `json:"overridden"`

	Error string `json:"error,omitempty"`

	EvaluatedAt time.Time     `json:"evaluated_at"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether the evaluation failed.
func (r *Record) Failed() bool {
	return r.Error != ""
}

// Status values for Query.Status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Query defines filter parameters for stored results. Zero fields do not
// filter.
type Query struct {
	// Evaluation time range, both ends inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	SceneID     string `json:"scene_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	// RuleID keeps results in which this rule fired.
	RuleID *int `json:"rule_id,omitempty"`

	// Status is "success" or "error".
	Status string `json:"status,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder orders by evaluation time: "asc" or "desc" (default).
	SortOrder string `json:"sort_order,omitempty"`
}

// Store is a result storage backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put persists a record.
	Put(ctx context.Context, record *Record) error

	// Latest returns the newest successful record for scene stored under
	// cacheKey, or ErrNotFound.
	Latest(ctx context.Context, sceneID, cacheKey string) (*Record, error)

	// Query returns the records matching q.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes the records matching q and returns how many went.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Ping verifies the backend is usable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Exporter writes records in some file format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
