package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/export"
	"drivelogic-hq/reasoner/pkg/results/retention"
)

// queryFlags are the filters shared by results list and results export.
type queryFlags struct {
	sceneID     string
	runID       string
	fingerprint string
	ruleID      int
	status      string
	since       time.Duration
	limit       int
	offset      int
	order       string
}

func (f *queryFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.sceneID, "scene", "", "filter by scene id")
	cmd.Flags().StringVar(&f.runID, "run", "", "filter by run id")
	cmd.Flags().StringVar(&f.fingerprint, "fingerprint", "", "filter by rule base fingerprint")
	cmd.Flags().IntVar(&f.ruleID, "rule", 0, "only results in which this rule fired")
	cmd.Flags().StringVar(&f.status, "status", "", "filter by status: success, error")
	cmd.Flags().DurationVar(&f.since, "since", 0, "only results newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&f.limit, "limit", defaultLimit, "maximum number of results (0 for no limit)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "skip this many results")
	cmd.Flags().StringVar(&f.order, "order", "desc", "sort order by evaluation time: asc, desc")
}

func (f *queryFlags) query(cmd *cobra.Command) *results.Query {
	q := &results.Query{
		SceneID:     f.sceneID,
		RunID:       f.runID,
		Fingerprint: f.fingerprint,
		Status:      f.status,
		Limit:       f.limit,
		Offset:      f.offset,
		SortOrder:   f.order,
	}
	if cmd.Flags().Changed("rule") {
		id := f.ruleID
		q.RuleID = &id
	}
	if f.since > 0 {
		start := time.Now().Add(-f.since)
		q.StartTime = &start
	}
	return q
}

var (
	listFlags   queryFlags
	listFormat  string
	exportFlags queryFlags
	exportOpts  struct {
		format string
		output string
	}
	pruneFlags struct {
		days       int
		maxRecords int64
		archiveDir string
	}
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query, export and prune stored results",
	Long: `Work with the evaluation results kept in the result store.

Every evaluation made by "reason" and "serve" is stored with the
fingerprint of the rule base it ran against, so results can be traced to
the exact rules that produced them.`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results",
	Long: `List stored results, newest first.

Examples:
  # Last 20 results
  drivelogic results list --limit 20

  # Failed evaluations of the last day
  drivelogic results list --status error --since 24h

  # Results in which rule 58 fired, as JSON
  drivelogic results list --rule 58 --format json`,
	Args: cobra.NoArgs,
	RunE: runResultsList,
}

var resultsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored results",
	Long: `Export stored results to a file or stdout.

Formats:
  result  scene id → {actions_to_take, intention}, newest result per scene
  json    full records
  csv     one row per record

Examples:
  # Result file for one run
  drivelogic results export --run 5f0c... --output result.json

  # Everything from the last week as CSV
  drivelogic results export --format csv --since 168h --limit 0 > results.csv`,
	Args: cobra.NoArgs,
	RunE: runResultsExport,
}

var resultsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	Long: `Delete results older than the retention period and beyond the record
cap, archiving them first when an archive directory is configured.

Examples:
  # Use the configured retention
  drivelogic results prune

  # Keep one week and at most 10000 results
  drivelogic results prune --days 7 --max-records 10000`,
	Args: cobra.NoArgs,
	RunE: runResultsPrune,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd, resultsExportCmd, resultsPruneCmd)

	listFlags.register(resultsListCmd, 50)
	resultsListCmd.Flags().StringVar(&listFormat, "format", "text", "output format: text, json, csv")

	exportFlags.register(resultsExportCmd, 0)
	resultsExportCmd.Flags().StringVar(&exportOpts.format, "format", export.FormatResult, "export format: result, json, csv")
	resultsExportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "output file (stdout when empty)")

	resultsPruneCmd.Flags().IntVar(&pruneFlags.days, "days", -1, "override retention days (0 keeps forever)")
	resultsPruneCmd.Flags().Int64Var(&pruneFlags.maxRecords, "max-records", -1, "override the record cap (0 for no cap)")
	resultsPruneCmd.Flags().StringVar(&pruneFlags.archiveDir, "archive-dir", "", "archive pruned results to this directory")
}

func runResultsList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(listFormat)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q := listFlags.query(cmd)
	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("results list", err)
	}
	total, err := store.Count(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("results list", err)
	}

	var data any = &recordList{records: records, total: total}
	if format == cli.FormatJSON {
		data = struct {
			Total   int64             `json:"total"`
			Results []*results.Record `json:"results"`
		}{total, records}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(exportOpts.format, true)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), exportFlags.query(cmd))
	if err != nil {
		return cli.NewCommandError("results export", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOpts.output != "" {
		f, err := os.Create(exportOpts.output)
		if err != nil {
			return cli.NewCommandError("results export", err)
		}
		defer f.Close()
		w = f
	}

	if err := exporter.Export(cmd.Context(), records, w); err != nil {
		return cli.NewCommandError("results export", err)
	}
	if exportOpts.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d results to %s\n", len(records), exportOpts.output)
	}
	return nil
}

func runResultsPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rc := a.cfg.Results.Retention
	if pruneFlags.days >= 0 {
		rc.Days = pruneFlags.days
	}
	if pruneFlags.maxRecords >= 0 {
		rc.MaxRecords = pruneFlags.maxRecords
	}
	if pruneFlags.archiveDir != "" {
		rc.ArchiveDir = pruneFlags.archiveDir
	}

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, rc,
		retention.WithLogger(a.logger),
		retention.WithRecorder(a.tel.Metrics()),
	)
	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("results prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d results\n", deleted)
	return nil
}

// recordList renders stored records as a table or CSV.
type recordList struct {
	records []*results.Record
	total   int64
}

func (l *recordList) WriteText(w io.Writer) error {
	fmt.Fprintln(w, "EVALUATED\tSCENE\tSTATUS\tACTIONS\tRULE BASE\tRUN")
	for _, r := range l.records {
		row := l.row(r)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], orDash(row[3]), shortID(row[4]), shortID(row[5]))
	}
	fmt.Fprintf(w, "\n%d of %d results\n", len(l.records), l.total)
	return nil
}

func (l *recordList) Header() []string {
	return []string{"evaluated_at", "scene_id", "status", "actions", "fingerprint", "run_id", "id"}
}

func (l *recordList) Rows() [][]string {
	rows := make([][]string, len(l.records))
	for i, r := range l.records {
		rows[i] = append(l.row(r), r.ID)
	}
	return rows
}

func (l *recordList) row(r *results.Record) []string {
	status := results.StatusSuccess
	actions := formatActions(r.Fired)
	if r.Failed() {
		status = results.StatusError
		actions = r.Error
	}
	return []string{
		r.EvaluatedAt.Local().Format(time.DateTime),
		r.SceneID,
		status,
		actions,
		r.Fingerprint,
		r.RunID,
	}
}
