package server

import (
	"context"
	"fmt"
	"log/slog"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/rulebase/source"
)

// ReloadRecorder receives compile and reload metrics. metrics.Collector
// implements it.
type ReloadRecorder interface {
	RecordCompile(stats compiler.Stats)
	RecordCompileError()
	RecordReload(success bool)
}

// Reloader recompiles the rule base when its source changes and swaps it
// into the engine. A rule base that fails to load or compile leaves the
// running one in place.
type Reloader struct {
	source   source.Source
	engine   *engine.Engine
	recorder ReloadRecorder
	logger   *slog.Logger
	opts     []compiler.Option
}

// NewReloader creates a reloader. opts are passed to every compilation.
func NewReloader(src source.Source, eng *engine.Engine, rec ReloadRecorder, logger *slog.Logger, opts ...compiler.Option) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		source:   src,
		engine:   eng,
		recorder: rec,
		logger:   logger.With("component", "reloader"),
		opts:     opts,
	}
}

// Reload loads, compiles and installs the current rule base.
func (r *Reloader) Reload(ctx context.Context) error {
	err := r.reload(ctx)
	if r.recorder != nil {
		r.recorder.RecordReload(err == nil)
	}
	return err
}

func (r *Reloader) reload(ctx context.Context) error {
	b, err := r.source.Load(ctx)
	if err != nil {
		r.compileFailed()
		return fmt.Errorf("failed to load rule base: %w", err)
	}

	compiled, err := compiler.Compile(ctx, b.Rules.Rules, b.Taxonomy, r.opts...)
	if err != nil {
		r.compileFailed()
		return fmt.Errorf("failed to compile rule base: %w", err)
	}
	if r.recorder != nil {
		r.recorder.RecordCompile(compiled.Stats())
	}

	if compiled.Fingerprint() == r.engine.Compiled().Fingerprint() {
		r.logger.Debug("rule base unchanged", "fingerprint", compiled.Fingerprint())
		return nil
	}
	return r.engine.Reload(compiled)
}

func (r *Reloader) compileFailed() {
	if r.recorder != nil {
		r.recorder.RecordCompileError()
	}
}

// Run reloads on every source event until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	events, err := r.source.Watch(ctx)
	if err != nil {
		return err
	}

	for ev := range events {
		r.logger.Info("rule base changed, reloading", "path", ev.Path, "op", ev.Op)
		if err := r.Reload(ctx); err != nil {
			r.logger.Error("reload failed, keeping current rule base", "error", err)
		}
	}
	return nil
}
