package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/export"
)

// Recorder receives the number of records removed by each prune.
// metrics.Collector implements it.
type Recorder interface {
	RecordPruned(n int64)
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder reports pruned counts to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pruner) { p.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) { p.now = now }
}

// Pruner enforces retention on a result store.
type Pruner struct {
	store     results.Store
	config    config.RetentionConfig
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
	scheduler *Scheduler
}

// NewPruner creates a pruner for store.
func NewPruner(store results.Store, cfg config.RetentionConfig, opts ...Option) *Pruner {
	p := &Pruner{
		store:  store,
		config: cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "results.retention")
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes results older than the retention period, then the oldest
// results beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.Days > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if p.recorder != nil {
		p.recorder.RecordPruned(total)
	}

	if total == 0 {
		p.logger.Debug("no results pruned",
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Info("result pruning completed",
			"total_deleted", total,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}

	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.Days)
	query := &results.Query{EndTime: &cutoff}

	if err := p.archive(ctx, query, "age"); err != nil {
		return 0, err
	}

	deleted, err := p.store.Delete(ctx, query)
	if err != nil {
		return 0, err
	}

	p.logger.Debug("pruned results by age", "deleted_count", deleted, "cutoff", cutoff)
	return deleted, nil
}

// pruneByCount deletes the oldest results beyond MaxRecords. Records
// sharing the cutoff timestamp go together, so slightly more than the
// excess may be removed.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.store.Count(ctx, &results.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := int(count - p.config.MaxRecords)
	oldest, err := p.store.Query(ctx, &results.Query{SortOrder: "asc", Limit: excess})
	if err != nil {
		return 0, fmt.Errorf("failed to query results: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[len(oldest)-1].EvaluatedAt
	query := &results.Query{EndTime: &cutoff}

	if err := p.archive(ctx, query, "count"); err != nil {
		return 0, err
	}

	deleted, err := p.store.Delete(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	p.logger.Info("record count exceeded limit, pruned oldest",
		"count", count,
		"max_records", p.config.MaxRecords,
		"deleted_count", deleted,
	)
	return deleted, nil
}

// archive writes the records matching query to ArchiveDir as JSON. It does
// nothing when archiving is off or nothing matches.
func (p *Pruner) archive(ctx context.Context, query *results.Query, reason string) error {
	if p.config.ArchiveDir == "" {
		return nil
	}

	n, err := p.store.Count(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count results for archiving: %w", err)
	}
	if n == 0 {
		return nil
	}

	q := *query
	q.SortOrder = "asc"
	q.Limit = int(n)
	records, err := p.store.Query(ctx, &q)
	if err != nil {
		return fmt.Errorf("failed to query results for archiving: %w", err)
	}

	if err := os.MkdirAll(p.config.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("results-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405"))
	path := filepath.Join(p.config.ArchiveDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to archive results: %w", err)
	}

	p.logger.Info("results archived", "archive_file", path, "record_count", len(records))
	return nil
}

// Start schedules pruning on the configured cron expression.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled prune, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
