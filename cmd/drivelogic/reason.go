package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/export"
	"drivelogic-hq/reasoner/pkg/runner"
	"drivelogic-hq/reasoner/pkg/scene"
)

var reasonFlags struct {
	output   string
	format   string
	workers  int
	failFast bool
	noCache  bool
	noStore  bool
	progress bool
}

var reasonCmd = &cobra.Command{
	Use:   "reason [scene-file]",
	Short: "Evaluate a scene file",
	Long: `Evaluate every scene of a scene file against the rule base.

The scene file maps scene ids to descriptions with the sections situation,
control_device, road_user and intention. Results are written as a result
file mapping each scene id to its actions_to_take and intention, and a
summary is printed.

Scenes with a stored result for the same rule base are not evaluated again
unless --no-cache is given. A malformed scene is reported and the rest of
the batch still runs; the command then exits with status 3.

Examples:
  # Evaluate the configured scene file
  drivelogic reason

  # Evaluate a file and write results elsewhere
  drivelogic reason scenes.yaml --output out/result.json

  # Print results as JSON instead of a table
  drivelogic reason scenes.json --format json --output ""`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReason,
}

func init() {
	rootCmd.AddCommand(reasonCmd)

	reasonCmd.Flags().StringVarP(&reasonFlags.output, "output", "o", "", "result file path (default from config, empty string disables)")
	reasonCmd.Flags().StringVar(&reasonFlags.format, "format", "text", "output format: text, json, csv")
	reasonCmd.Flags().IntVarP(&reasonFlags.workers, "workers", "w", 0, "override the number of concurrent workers")
	reasonCmd.Flags().BoolVar(&reasonFlags.failFast, "fail-fast", false, "stop at the first failed scene")
	reasonCmd.Flags().BoolVar(&reasonFlags.noCache, "no-cache", false, "evaluate scenes even when a stored result exists")
	reasonCmd.Flags().BoolVar(&reasonFlags.noStore, "no-store", false, "do not store results")
	reasonCmd.Flags().BoolVar(&reasonFlags.progress, "progress", false, "show a progress bar on stderr")
}

func runReason(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(reasonFlags.format)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	scenePath := a.cfg.Scene.Path
	if len(args) == 1 {
		scenePath = args[0]
	}
	if scenePath == "" {
		return cli.NewConfigError("scene.path", "no scene file given")
	}

	output := a.cfg.Results.ExportPath
	if cmd.Flags().Changed("output") {
		output = reasonFlags.output
	}

	rc := a.cfg.Runner
	if reasonFlags.workers > 0 {
		rc.Workers = reasonFlags.workers
	}
	if reasonFlags.failFast {
		rc.FailFast = true
	}
	if reasonFlags.noCache {
		rc.SkipCached = false
	}

	synonyms, err := scene.LoadSynonyms(a.cfg.Scene.SynonymsPath)
	if err != nil {
		return cli.NewConfigError("scene.synonyms_path", err.Error())
	}

	scenes, err := runner.LoadScenes(scenePath)
	if err != nil {
		return cli.NewCommandError("reason", err)
	}

	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}

	opts := []runner.Option{
		runner.WithLogger(a.logger),
		runner.WithRecorder(a.tel.Metrics()),
		runner.WithTracer(a.tel.Tracer().Tracer()),
	}
	if !reasonFlags.noStore {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			opts = append(opts, runner.WithStore(store, a.backend()))
		}
	}
	if reasonFlags.progress {
		opts = append(opts, runner.WithProgress(cli.NewProgressBar(cmd.ErrOrStderr(), "scenes")))
	}

	sum, runErr := runner.New(eng, rc, opts...).Run(ctx, scenes)
	if sum == nil {
		return cli.NewCommandError("reason", runErr)
	}

	records := summaryRecords(sum)
	if output != "" {
		if err := writeResultFile(ctx, output, records); err != nil {
			return cli.NewCommandError("reason", err)
		}
		a.logger.Info("result file written", "path", output, "scenes", len(records))
	}

	report := &reasonReport{summary: sum, synonyms: synonyms}
	var data any = report
	if format == cli.FormatJSON {
		data = export.Collect(records)
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data); err != nil {
		return err
	}

	switch {
	case runErr != nil && !errors.Is(runErr, runner.ErrSceneFailed):
		return cli.NewCommandError("reason", runErr)
	case sum.Failed > 0 || sum.Skipped > 0:
		return &cli.SceneFailureError{Failed: sum.Failed + sum.Skipped, Total: len(sum.Outcomes)}
	}
	return nil
}

// summaryRecords converts the successful outcomes of a run into records
// for the result file.
func summaryRecords(sum *runner.Summary) []*results.Record {
	now := time.Now()
	records := make([]*results.Record, 0, len(sum.Outcomes))
	for _, o := range sum.Outcomes {
		if o.Result != nil {
			records = append(records, results.FromResult(sum.RunID, o.Result, now))
		}
	}
	return records
}

func writeResultFile(ctx context.Context, path string, records []*results.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	if err := export.NewResultFileExporter(true).Export(ctx, records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// reasonReport renders a batch summary as a table or CSV.
type reasonReport struct {
	summary  *runner.Summary
	synonyms map[string][]string
}

func (r *reasonReport) WriteText(w io.Writer) error {
	fmt.Fprintln(w, "SCENE\tACTIONS\tINTENTIONS\tNOTE")
	for _, o := range r.summary.Outcomes {
		row := r.row(o)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row[0], orDash(row[1]), orDash(row[2]), row[3])
	}

	s := r.summary
	fmt.Fprintf(w, "\n%d evaluated, %d cached, %d failed, %d skipped in %s (rule base %s, run %s)\n",
		s.Evaluated, s.Cached, s.Failed, s.Skipped, s.Duration.Round(time.Microsecond), shortID(s.Fingerprint), s.RunID)
	return nil
}

func (r *reasonReport) Header() []string {
	return []string{"scene_id", "actions", "intentions", "note"}
}

func (r *reasonReport) Rows() [][]string {
	rows := make([][]string, len(r.summary.Outcomes))
	for i, o := range r.summary.Outcomes {
		rows[i] = r.row(o)
	}
	return rows
}

func (r *reasonReport) row(o runner.Outcome) []string {
	if o.Result == nil {
		note := "error: " + errString(o.Err)
		if o.Skipped {
			note = "skipped"
		}
		return []string{o.SceneID, "", "", note}
	}

	var notes []string
	if o.Cached {
		notes = append(notes, "cached")
	}
	if len(r.synonyms) > 0 {
		if um := o.Result.UnmatchedIntentions(r.synonyms); len(um) > 0 {
			notes = append(notes, "unmatched: "+strings.Join(um, ","))
		}
	}
	return []string{o.SceneID, formatActions(o.Result.Fired), strings.Join(o.Result.Intentions, ","), strings.Join(notes, "; ")}
}

func formatActions(fired []engine.FiredRule) string {
	parts := make([]string, len(fired))
	for i, f := range fired {
		parts[i] = strconv.Itoa(f.RuleID) + ":" + f.Action
	}
	return strings.Join(parts, " ")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
