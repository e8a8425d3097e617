package results

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivelogic-hq/reasoner/pkg/engine"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// FromResult builds the record of a successful evaluation.
func FromResult(runID string, res *engine.Result, at time.Time) *Record {
	fired := make([]engine.FiredRule, len(res.Fired))
	copy(fired, res.Fired)
	intentions := make([]string, len(res.Intentions))
	copy(intentions, res.Intentions)

	return &Record{
		ID:          uuid.NewString(),
		RunID:       runID,
		SceneID:     res.SceneID,
		Fingerprint: res.Fingerprint,
		CacheKey:    res.CacheKey,
		Fired:       fired,
		Intentions:  intentions,
		Defaulted:   res.Defaulted,
		Overridden:  res.Overridden,
		EvaluatedAt: at.UTC(),
		Duration:    res.Duration,
	}
}

// FromError builds the record of a failed evaluation.
func FromError(runID, sceneID, fingerprint string, err error, at time.Time) *Record {
	return &Record{
		ID:          uuid.NewString(),
		RunID:       runID,
		SceneID:     sceneID,
		Fingerprint: fingerprint,
		Fired:       []engine.FiredRule{},
		Intentions:  []string{},
		Error:       err.Error(),
		EvaluatedAt: at.UTC(),
	}
}

// Validate checks a query before it reaches a backend.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return &QueryError{Field: "limit", Cause: fmt.Errorf("must not be negative, got %d", q.Limit)}
	}
	if q.Offset < 0 {
		return &QueryError{Field: "offset", Cause: fmt.Errorf("must not be negative, got %d", q.Offset)}
	}
	switch q.Status {
	case "", StatusSuccess, StatusError:
	default:
		return &QueryError{Field: "status", Cause: fmt.Errorf("unknown status %q", q.Status)}
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return &QueryError{Field: "sort_order", Cause: fmt.Errorf("must be asc or desc, got %q", q.SortOrder)}
	}
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return &QueryError{Field: "end_time", Cause: errors.New("is before start_time")}
	}
	return nil
}

// Matches reports whether r satisfies the filters of q. Pagination and
// ordering are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.EvaluatedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.EvaluatedAt.After(*q.EndTime) {
		return false
	}
	if q.SceneID != "" && r.SceneID != q.SceneID {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Fingerprint != "" && r.Fingerprint != q.Fingerprint {
		return false
	}
	if q.RuleID != nil {
		found := false
		for _, f := range r.Fired {
			if f.RuleID == *q.RuleID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	switch q.Status {
	case StatusSuccess:
		return !r.Failed()
	case StatusError:
		return r.Failed()
	}
	return true
}
