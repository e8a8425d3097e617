package storage

import (
	"context"
	"sort"
	"sync"

	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
)

const backendMemory = "memory"

// MemoryStore implements results.Store in memory. Results are lost on exit;
// use it for tests and for "serve" without persistence.
type MemoryStore struct {
	records map[string]*results.Record
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*results.Record),
	}
}

// Put stores a copy of record.
func (s *MemoryStore) Put(ctx context.Context, record *results.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return results.NewStorageError(backendMemory, "put", results.ErrClosed)
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Latest returns the newest successful record for the scene and cache key.
func (s *MemoryStore) Latest(ctx context.Context, sceneID, cacheKey string) (*results.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, results.NewStorageError(backendMemory, "latest", results.ErrClosed)
	}
	if cacheKey == "" {
		return nil, results.ErrNotFound
	}

	var latest *results.Record
	for _, r := range s.records {
		if r.SceneID != sceneID || r.CacheKey != cacheKey || r.Failed() {
			continue
		}
		if latest == nil || r.EvaluatedAt.After(latest.EvaluatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, results.ErrNotFound
	}
	return cloneRecord(latest), nil
}

// Query returns copies of the records matching q.
func (s *MemoryStore) Query(ctx context.Context, q *results.Query) ([]*results.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, results.NewStorageError(backendMemory, "query", results.ErrClosed)
	}

	matched := s.matching(q)
	sortRecords(matched, q.SortOrder == "asc")

	start := q.Offset
	if start > len(matched) {
		return []*results.Record{}, nil
	}
	limit := defaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*results.Record, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

// Count returns the number of records matching q.
func (s *MemoryStore) Count(ctx context.Context, q *results.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, results.NewStorageError(backendMemory, "count", results.ErrClosed)
	}
	return int64(len(s.matching(q))), nil
}

// Delete removes the records matching q.
func (s *MemoryStore) Delete(ctx context.Context, q *results.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, results.NewStorageError(backendMemory, "delete", results.ErrClosed)
	}

	var n int64
	for id, r := range s.records {
		if q.Matches(r) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Ping fails only after Close.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return results.NewStorageError(backendMemory, "ping", results.ErrClosed)
	}
	return nil
}

// Close drops all records.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.closed = true
	return nil
}

func (s *MemoryStore) matching(q *results.Query) []*results.Record {
	var out []*results.Record
	for _, r := range s.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortRecords(records []*results.Record, ascending bool) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.EvaluatedAt.Equal(b.EvaluatedAt) {
			if ascending {
				return a.EvaluatedAt.Before(b.EvaluatedAt)
			}
			return a.EvaluatedAt.After(b.EvaluatedAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

func cloneRecord(r *results.Record) *results.Record {
	c := *r
	c.Fired = append([]engine.FiredRule{}, r.Fired...)
	c.Intentions = append([]string{}, r.Intentions...)
	return &c
}
