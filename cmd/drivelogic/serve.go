package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/results/retention"
	"drivelogic-hq/reasoner/pkg/runner"
	"drivelogic-hq/reasoner/pkg/scene"
	"drivelogic-hq/reasoner/pkg/server"
	"drivelogic-hq/reasoner/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	watch         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the reasoning HTTP API.

Routes:
  POST /v1/reason        evaluate one scene
  POST /v1/reason/batch  evaluate a scene file document
  GET  /v1/rules         compiled rule base summary
  GET  /v1/results       stored results
  GET  /health, /ready, /version, /metrics

With rules.watch (or --watch) the rule base and taxonomy files are watched
and recompiled on change; a rule base that fails to compile leaves the
running one in place. Stored results are pruned on the configured
retention schedule.

Examples:
  # Start with default config
  drivelogic serve

  # Start with custom config and override the listen address
  drivelogic serve --config /etc/drivelogic/config.yaml --listen 0.0.0.0:8080

  # Validate config and rule base without starting the server
  drivelogic serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", false, "reload the rule base when its files change")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and rule base without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.watch {
		cfg.Rules.Watch = true
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	synonyms, err := scene.LoadSynonyms(cfg.Scene.SynonymsPath)
	if err != nil {
		return cli.NewConfigError("scene.synonyms_path", err.Error())
	}

	if serveFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid, rule base %s compiled\n", eng.Compiled().Fingerprint())
		return nil
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}

	runOpts := []runner.Option{
		runner.WithLogger(a.logger),
		runner.WithRecorder(a.tel.Metrics()),
		runner.WithTracer(a.tel.Tracer().Tracer()),
	}

	checker := health.New(0)
	checker.RegisterCheck("rules", health.RuleBaseCheck(eng.Compiled))

	if store != nil {
		defer store.Close()
		runOpts = append(runOpts, runner.WithStore(store, a.backend()))
		checker.RegisterCheck("results", health.StoreCheck(store))

		pruner := retention.NewPruner(store, cfg.Results.Retention,
			retention.WithLogger(a.logger),
			retention.WithRecorder(a.tel.Metrics()),
		)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewConfigError("results.retention.prune_schedule", err.Error())
		}
		defer pruner.Stop()
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Engine:      eng,
		Runner:      runner.New(eng, cfg.Runner, runOpts...),
		Store:       store,
		Backend:     a.backend(),
		Metrics:     a.tel.Metrics(),
		Tracer:      a.tel.Tracer(),
		Health:      checker,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Synonyms:    synonyms,
		Logger:      a.logger,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })

	if cfg.Rules.Watch {
		src, err := a.ruleSource()
		if err != nil {
			return err
		}
		reloader := server.NewReloader(src, eng, a.tel.Metrics(), a.logger, a.compilerOptions()...)
		g.Go(func() error { return reloader.Run(gctx) })
	}

	a.logger.Info("drivelogic serving",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"fingerprint", eng.Compiled().Fingerprint(),
		"watch", cfg.Rules.Watch,
		"results_backend", a.backend(),
	)

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
