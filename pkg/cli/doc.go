/*
Package cli holds the helpers shared by the drivelogic subcommands: output
formatting, progress reporting, signal handling and exit codes.

Output Formatting:

Commands render their results as text, JSON or CSV. Values implementing
TextWriter control their text layout; values implementing Tabular can be
written as CSV:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, report)

Progress Reporting:

A ProgressBar can be handed to a batch runner:

	r := runner.New(eng, cfg.Runner, runner.WithProgress(cli.NewProgressBar(nil, "scenes")))

Exit Codes:

ExitCode maps command errors to process exit codes: configuration
problems exit with 2 and partially failed batches with 3.
*/
package cli
