package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/diag"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/storage"
	"drivelogic-hq/reasoner/pkg/rulebase/source"
	"drivelogic-hq/reasoner/pkg/telemetry"
	"drivelogic-hq/reasoner/pkg/telemetry/logging"
	"drivelogic-hq/reasoner/pkg/telemetry/tracing"
)

// app is the state shared by every command: configuration, telemetry and
// the diagnostic sink.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger *slog.Logger
	sink   diag.Sink
	closer func() error
	source source.Source
}

// loadConfig reads the configuration named by --config and applies the
// global flag overrides.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return nil, cli.NewConfigError("log-level", err.Error())
		}
		cfg.Telemetry.Logging.Level = logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp loads configuration and builds telemetry. Logs go to stderr so
// that stdout carries only command output.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(&cfg.Telemetry, Version, os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err.Error())
	}
	logger := tel.Logger().Slog()
	slog.SetDefault(logger)

	a := &app{cfg: cfg, tel: tel, logger: logger, sink: diag.Discard, closer: func() error { return nil }}
	if err := a.openSink(); err != nil {
		return nil, err
	}
	return a, nil
}

// openSink selects the diagnostic sink: a per-run file under Dir, the
// application logger when Dir is empty, or nothing when disabled.
func (a *app) openSink() error {
	dc := a.cfg.Diagnostics
	if !dc.Enabled {
		return nil
	}

	if dc.Dir == "" {
		level, err := logging.ParseLevel(dc.Level)
		if err != nil {
			return cli.NewConfigError("diagnostics.level", err.Error())
		}
		a.sink = diag.NewSlogSink(a.logger, level)
		return nil
	}

	fs, err := diag.NewFileSink(dc.Dir, time.Now())
	if err != nil {
		return err
	}
	a.logger.Info("writing diagnostics", "path", fs.Path())
	a.sink = fs
	a.closer = fs.Close
	return nil
}

// close flushes telemetry and closes the diagnostic sink.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
	if err := a.closer(); err != nil {
		a.logger.Warn("failed to close diagnostics", "error", err)
	}
}

// ruleSource returns the configured rule base source: a Git clone when a
// repository is configured, the local files otherwise.
func (a *app) ruleSource() (source.Source, error) {
	if a.source != nil {
		return a.source, nil
	}
	rc := a.cfg.Rules
	if rc.Git.Repository == "" {
		a.source = source.NewFileSource(rc.Path, rc.TaxonomyPath, rc.WatchDebounce, a.logger)
		return a.source, nil
	}
	gs, err := source.NewGitSource(rc.Git, rc.Path, rc.TaxonomyPath, a.logger)
	if err != nil {
		return nil, cli.NewConfigError("rules.git", err.Error())
	}
	a.source = gs
	return a.source, nil
}

// compilerOptions are shared by the initial compile and hot reloads.
func (a *app) compilerOptions() []compiler.Option {
	return []compiler.Option{compiler.WithLogger(a.logger), compiler.WithSink(a.sink)}
}

// compile loads and compiles the rule base once.
func (a *app) compile(ctx context.Context) (*compiler.Compiled, error) {
	ctx, span := a.tel.Tracer().Start(ctx, "rulebase.Compile")
	defer span.End()

	src, err := a.ruleSource()
	if err != nil {
		return nil, err
	}
	b, err := src.Load(ctx)
	if err != nil {
		a.tel.Metrics().RecordCompileError()
		tracing.SetStatus(span, err)
		return nil, err
	}

	compiled, err := compiler.Compile(ctx, b.Rules.Rules, b.Taxonomy, a.compilerOptions()...)
	if err != nil {
		a.tel.Metrics().RecordCompileError()
		tracing.SetStatus(span, err)
		return nil, err
	}

	a.tel.Metrics().RecordCompile(compiled.Stats())
	tracing.SetRuleBaseAttributes(span, compiled.Fingerprint(), compiled.Stats())
	tracing.SetStatus(span, nil)
	return compiled, nil
}

// newEngine compiles the rule base and creates an engine with the
// configured policy.
func (a *app) newEngine(ctx context.Context) (*engine.Engine, error) {
	compiled, err := a.compile(ctx)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(compiled, policyFromConfig(a.cfg.Policy),
		engine.WithLogger(a.logger),
		engine.WithSink(a.sink),
		engine.WithObserver(a.tel.Metrics()),
		engine.WithTracer(a.tel.Tracer().Tracer()),
	)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidPolicy) {
			return nil, cli.NewConfigError("policy", err.Error())
		}
		return nil, err
	}
	return eng, nil
}

// openStore opens the result store. It returns a nil store when results
// are disabled.
func (a *app) openStore() (results.Store, error) {
	if !a.cfg.Results.Enabled {
		return nil, nil
	}
	store, err := storage.Open(a.cfg.Results, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return store, nil
}

// requireStore is openStore for commands that cannot work without one.
func (a *app) requireStore() (results.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, cli.NewConfigError("results.enabled", "result storage is disabled")
	}
	return store, nil
}

// backend names the configured store for metrics labels.
func (a *app) backend() string {
	if a.cfg.Results.Backend == "" {
		return "memory"
	}
	return a.cfg.Results.Backend
}

// policyFromConfig converts the policy section into an engine policy.
func policyFromConfig(pc config.PolicyConfig) *engine.Policy {
	p := &engine.Policy{
		Elevated:       append([]int(nil), pc.Elevated...),
		DefaultRuleID:  pc.DefaultRuleID,
		DefaultAction:  pc.DefaultAction,
		StartRuleID:    pc.StartRuleID,
		StartAction:    pc.StartAction,
		OverrideDevice: pc.OverrideDevice,
		OverrideFrom:   append([]string(nil), pc.OverrideFrom...),
		OverrideTo:     pc.OverrideTo,
		OvertakeMarker: pc.OvertakeMarker,
	}
	for _, ex := range pc.Exclusions {
		p.Exclusions = append(p.Exclusions, engine.Exclusion{
			When:   append([]int(nil), ex.When...),
			Remove: append([]int(nil), ex.Remove...),
		})
	}
	return p
}
