// Package diag defines the write-only diagnostic sink the compiler and the
// engine report to: the interned identifier table, the compiled trie,
// excluded rules, per-scene facts and fired rules.
//
// Nothing written to a sink is ever read back by the engine. Sinks must be
// safe for concurrent use when one engine serves concurrent callers.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one row of the identifier table.
type Entry struct {
	ID   int
	Atom string
}

// Fact is one scene fact together with its identifier, if it is known to
// the identifier table.
type Fact struct {
	Atom  string
	ID    int
	Known bool
}

// Fired is one fired rule record.
type Fired struct {
	RuleID int
	Action string
}

// Sink receives diagnostic output.
type Sink interface {
	// Table receives the full identifier table after compilation.
	Table(entries []Entry)

	// Trie receives a rendering of the compiled trie, one line per node.
	Trie(lines []string)

	// Excluded reports a rule dropped during compilation.
	Excluded(ruleID int, reason string)

	// Facts receives the fact list derived for a scene.
	Facts(sceneID string, facts []Fact)

	// Fired receives the final fired-rule set for a scene.
	Fired(sceneID string, fired []Fired)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Table([]Entry) {}
func (discard) Trie([]string) {}
func (discard) Excluded(int, string) {}
func (discard) Facts(string, []Fact) {}
func (discard) Fired(string, []Fired) {}

// SlogSink writes diagnostics as structured log records at a fixed level.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink returns a sink writing to logger at level.
func NewSlogSink(logger *slog.Logger, level slog.Level) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "diag"), level: level}
}

// Table implements Sink.
func (s *SlogSink) Table(entries []Entry) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	s.logger.Log(ctx, s.level, "axiom condition table", "size", len(entries))
	for _, e := range entries {
		s.logger.Log(ctx, s.level, "axiom condition", "id", e.ID, "atom", e.Atom)
	}
}

// Trie implements Sink.
func (s *SlogSink) Trie(lines []string) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	for _, l := range lines {
		s.logger.Log(ctx, s.level, "rule trie", "node", l)
	}
}

// Excluded implements Sink. Exclusions are always logged at warn or above.
func (s *SlogSink) Excluded(ruleID int, reason string) {
	level := s.level
	if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "rule excluded from compilation",
		"rule_id", ruleID,
		"reason", reason,
	)
}

// Facts implements Sink.
func (s *SlogSink) Facts(sceneID string, facts []Fact) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	for _, f := range facts {
		if f.Known {
			s.logger.Log(ctx, s.level, "scene fact", "scene_id", sceneID, "fact", f.Atom, "id", f.ID)
		} else {
			s.logger.Log(ctx, s.level, "scene fact not in axiom condition table", "scene_id", sceneID, "fact", f.Atom)
		}
	}
}

// Fired implements Sink.
func (s *SlogSink) Fired(sceneID string, fired []Fired) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	actions := make([]string, len(fired))
	for i, f := range fired {
		actions[i] = fmt.Sprintf("%d:%s", f.RuleID, f.Action)
	}
	s.logger.Log(ctx, s.level, "reasoning result", "scene_id", sceneID, "actions", actions)
}

// FileSink is a SlogSink writing text records to a timestamped file in a
// directory, one file per run.
type FileSink struct {
	*SlogSink
	file *os.File
}

// NewFileSink creates dir if needed and opens <dir>/<YYYYMMDD_HHMMSS>.log.
func NewFileSink(dir string, now time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory %q: %w", dir, err)
	}

	path := filepath.Join(dir, now.Format("20060102_150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostics file %q: %w", path, err)
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &FileSink{
		SlogSink: NewSlogSink(logger, slog.LevelDebug),
		file:     f,
	}, nil
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string {
	return s.file.Name()
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}

// Recorder keeps everything it receives in memory. Useful in tests and for
// the CLI's inspect output.
type Recorder struct {
	mu       sync.Mutex
	table    []Entry
	trie     []string
	excluded map[int]string
	facts    map[string][]Fact
	fired    map[string][]Fired
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		excluded: make(map[int]string),
		facts:    make(map[string][]Fact),
		fired:    make(map[string][]Fired),
	}
}

// Table implements Sink.
func (r *Recorder) Table(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = append([]Entry(nil), entries...)
}

// Trie implements Sink.
func (r *Recorder) Trie(lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trie = append([]string(nil), lines...)
}

// Excluded implements Sink.
func (r *Recorder) Excluded(ruleID int, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.excluded[ruleID] = reason
}

// Facts implements Sink.
func (r *Recorder) Facts(sceneID string, facts []Fact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts[sceneID] = append([]Fact(nil), facts...)
}

// Fired implements Sink.
func (r *Recorder) Fired(sceneID string, fired []Fired) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired[sceneID] = append([]Fired(nil), fired...)
}

// TableEntries returns the last recorded identifier table.
func (r *Recorder) TableEntries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.table...)
}

// TrieLines returns the last recorded trie rendering.
func (r *Recorder) TrieLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.trie...)
}

// ExcludedRules returns excluded rule ids and their reasons.
func (r *Recorder) ExcludedRules() map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]string, len(r.excluded))
	for k, v := range r.excluded {
		out[k] = v
	}
	return out
}

// SceneFacts returns the facts recorded for a scene.
func (r *Recorder) SceneFacts(sceneID string) []Fact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fact(nil), r.facts[sceneID]...)
}

// SceneFired returns the fired rules recorded for a scene.
func (r *Recorder) SceneFired(sceneID string) []Fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fired(nil), r.fired[sceneID]...)
}
