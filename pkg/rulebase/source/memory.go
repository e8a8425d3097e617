package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

// ErrEmpty is returned by MemorySource.Load before any rule base was set.
var ErrEmpty = errors.New("no rule base set")

// MemorySource holds a rule base in memory. Set notifies watchers.
type MemorySource struct {
	mu       sync.Mutex
	bundle   *Bundle
	watchers []chan Event
}

// NewMemorySource creates a source holding rules and tax. A nil taxonomy
// selects the built-in one.
func NewMemorySource(rules *rulebase.RuleBase, tax *taxonomy.Taxonomy) *MemorySource {
	s := &MemorySource{}
	if rules != nil {
		s.bundle = newBundle(rules, tax)
	}
	return s
}

func newBundle(rules *rulebase.RuleBase, tax *taxonomy.Taxonomy) *Bundle {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Bundle{Rules: rules, Taxonomy: tax}
}

// Load returns the current bundle.
func (s *MemorySource) Load(ctx context.Context) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle == nil {
		return nil, ErrEmpty
	}
	b := *s.bundle
	return &b, nil
}

// Set replaces the rule base and notifies watchers.
func (s *MemorySource) Set(rules *rulebase.RuleBase, tax *taxonomy.Taxonomy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundle = newBundle(rules, tax)
	ev := Event{Op: "SET", Time: time.Now()}
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watch returns a channel receiving an event per Set.
func (s *MemorySource) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}
