package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/scene"
	"drivelogic-hq/reasoner/pkg/telemetry/logging"
	"drivelogic-hq/reasoner/pkg/telemetry/tracing"
)

// ErrSceneFailed is returned by Run in fail-fast mode when a scene fails.
var ErrSceneFailed = errors.New("scene evaluation failed")

// Recorder receives batch metrics. metrics.Collector implements it.
type Recorder interface {
	RecordBatch(evaluated, cached, failed int, duration time.Duration, err error)
	RecordStored(backend string, err error)
}

// Progress is told how many scenes a batch holds and how many are done.
// cli.ProgressBar implements it.
type Progress interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

type nopRecorder struct{}

func (nopRecorder) RecordBatch(int, int, int, time.Duration, error) {}
func (nopRecorder) RecordStored(string, error)                     {}

// Scene is one input of a batch.
type Scene struct {
	ID          string
	Description scene.Description
}

// Outcome is what happened to one scene.
type Outcome struct {
	SceneID string

	// Result is set for evaluated and cached scenes.
	Result *engine.Result

	// Cached is set when a stored result for the same rule base, policy and
	// scene description was reused.
	Cached bool

	// Skipped is set when the batch was cancelled before the scene ran.
	Skipped bool

	Err error
}

// Summary is the outcome of a batch run. Outcomes follow input order.
type Summary struct {
	RunID       string
	Fingerprint string
	Outcomes    []Outcome

	Evaluated int
	Cached    int
	Failed    int
	Skipped   int

	Duration time.Duration
}

// Results returns the successful results in input order.
func (s *Summary) Results() []*engine.Result {
	out := make([]*engine.Result, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		if o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStore stores every evaluation in store and, with SkipCached, reuses
// stored results. backend labels store metrics.
func WithStore(store results.Store, backend string) Option {
	return func(r *Runner) {
		r.store = store
		r.backend = backend
	}
}

// WithRecorder reports batch metrics to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithTracer sets the tracer for batch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithProgress reports scene completion to p.
func WithProgress(p Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner evaluates batches of scenes with a bounded worker pool.
type Runner struct {
	engine   *engine.Engine
	config   config.RunnerConfig
	store    results.Store
	backend  string
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	progress Progress
	now      func() time.Time
}

// New creates a runner. Workers below one run scenes one at a time.
func New(eng *engine.Engine, cfg config.RunnerConfig, opts ...Option) *Runner {
	r := &Runner{
		engine:   eng,
		config:   cfg,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.Workers < 1 {
		r.config.Workers = 1
	}
	r.logger = r.logger.With("component", "runner")
	return r
}

// Run evaluates scenes. Scene failures are recorded in their outcome and do
// not stop the batch unless FailFast is set, in which case Run returns an
// error wrapping ErrSceneFailed together with the partial summary.
// Results are stored in input order after all scenes finished.
func (r *Runner) Run(ctx context.Context, scenes []Scene) (*Summary, error) {
	runID := results.NewRunID()
	fingerprint := r.engine.Compiled().Fingerprint()
	start := time.Now()

	ctx = logging.WithRunID(ctx, runID)
	ctx, span := r.tracer.Start(ctx, "runner.Run",
		trace.WithAttributes(tracing.BatchAttributes(runID, len(scenes), r.config.Workers)...),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "batch started",
		"scenes", len(scenes),
		"workers", r.config.Workers,
		"fingerprint", fingerprint,
	)

	if r.progress != nil {
		r.progress.Start(int64(len(scenes)))
	}
	var done atomic.Int64

	outcomes := make([]Outcome, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	for i, s := range scenes {
		g.Go(func() error {
			outcomes[i] = r.evaluate(gctx, s)
			o := outcomes[i]
			if r.progress != nil {
				r.progress.Update(done.Add(1))
			}
			if r.config.FailFast && o.Err != nil && !o.Skipped {
				return fmt.Errorf("%w: %s: %v", ErrSceneFailed, o.SceneID, o.Err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	if r.progress != nil {
		r.progress.Finish()
	}

	summary := &Summary{
		RunID:       runID,
		Fingerprint: fingerprint,
		Outcomes:    outcomes,
	}
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			summary.Skipped++
		case o.Err != nil:
			summary.Failed++
		case o.Cached:
			summary.Cached++
		default:
			summary.Evaluated++
		}
	}

	r.persist(ctx, runID, fingerprint, outcomes)

	summary.Duration = time.Since(start)
	r.recorder.RecordBatch(summary.Evaluated, summary.Cached, summary.Failed, summary.Duration, runErr)
	tracing.SetBatchOutcome(span, summary.Cached, summary.Failed)
	tracing.SetStatus(span, runErr)

	r.logger.InfoContext(ctx, "batch finished",
		"evaluated", summary.Evaluated,
		"cached", summary.Cached,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)

	return summary, runErr
}

func (r *Runner) evaluate(ctx context.Context, s Scene) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{SceneID: s.ID, Skipped: true, Err: err}
	}

	ctx = logging.WithSceneID(ctx, s.ID)
	if r.config.SceneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.SceneTimeout)
		defer cancel()
	}

	if r.config.SkipCached && r.store != nil {
		rec, err := r.store.Latest(ctx, s.ID, r.engine.CacheKey(s.Description))
		switch {
		case err == nil:
			r.logger.DebugContext(ctx, "reusing stored result", "record_id", rec.ID)
			return Outcome{SceneID: s.ID, Result: resultFromRecord(rec), Cached: true}
		case !errors.Is(err, results.ErrNotFound):
			r.logger.WarnContext(ctx, "result lookup failed, evaluating", "error", err)
		}
	}

	res, err := r.engine.Reason(ctx, s.ID, s.Description)
	if err != nil {
		r.logger.WarnContext(ctx, "scene failed", "error", err)
		return Outcome{SceneID: s.ID, Err: err}
	}
	return Outcome{SceneID: s.ID, Result: res}
}

// persist stores fresh outcomes in input order. Store failures are logged
// and counted; they do not fail the batch.
func (r *Runner) persist(ctx context.Context, runID, fingerprint string, outcomes []Outcome) {
	if r.store == nil {
		return
	}
	// Outcomes are stored even when the batch context was cancelled.
	ctx = context.WithoutCancel(ctx)

	for _, o := range outcomes {
		if o.Cached || o.Skipped {
			continue
		}
		var rec *results.Record
		if o.Err != nil {
			rec = results.FromError(runID, o.SceneID, fingerprint, o.Err, r.now())
		} else {
			rec = results.FromResult(runID, o.Result, r.now())
		}

		err := r.store.Put(ctx, rec)
		r.recorder.RecordStored(r.backend, err)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to store result", "scene_id", o.SceneID, "error", err)
		}
	}
}

func resultFromRecord(rec *results.Record) *engine.Result {
	return &engine.Result{
		SceneID:     rec.SceneID,
		Fired:       rec.Fired,
		Intentions:  rec.Intentions,
		Defaulted:   rec.Defaulted,
		Overridden:  rec.Overridden,
		Fingerprint: rec.Fingerprint,
		CacheKey:    rec.CacheKey,
		Duration:    rec.Duration,
	}
}
