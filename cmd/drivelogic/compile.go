package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/diag"
)

var compileFlags struct {
	format string
	dump   bool
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the rule base and report its shape",
	Long: `Compile the configured rule base over its taxonomy and print the
fingerprint, compile statistics and every excluded rule with its reason.

With --dump the identifier table and the rule trie are printed as well.

Examples:
  # Summary
  drivelogic compile

  # Full identifier table and trie
  drivelogic compile --dump

  # Machine readable
  drivelogic compile --format json`,
	Args: cobra.NoArgs,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVar(&compileFlags.format, "format", "text", "output format: text, json")
	compileCmd.Flags().BoolVar(&compileFlags.dump, "dump", false, "include the identifier table and the trie")
}

func runCompile(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(compileFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return fmt.Errorf("compile does not support CSV output")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	compiled, err := a.compile(cmd.Context())
	if err != nil {
		return cli.NewCommandError("compile", err)
	}

	report := &compileReport{
		Source:      a.cfg.Rules.Path,
		Fingerprint: compiled.Fingerprint(),
		Stats:       compiled.Stats(),
		Excluded:    compiled.Excluded(),
	}
	if report.Excluded == nil {
		report.Excluded = []compiler.Exclusion{}
	}
	if compileFlags.dump {
		rec := diag.NewRecorder()
		compiled.Dump(rec)
		for _, e := range rec.TableEntries() {
			report.Table = append(report.Table, tableEntry{ID: e.ID, Atom: e.Atom})
		}
		report.Trie = rec.TrieLines()
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)
}

type tableEntry struct {
	ID   int    `json:"id"`
	Atom string `json:"atom"`
}

type compileReport struct {
	Source      string               `json:"source"`
	Fingerprint string               `json:"fingerprint"`
	Stats       compiler.Stats       `json:"stats"`
	Excluded    []compiler.Exclusion `json:"excluded"`
	Table       []tableEntry         `json:"table,omitempty"`
	Trie        []string             `json:"trie,omitempty"`
}

func (r *compileReport) WriteText(w io.Writer) error {
	s := r.Stats
	fmt.Fprintf(w, "Rule base:\t%s\n", r.Source)
	fmt.Fprintf(w, "Fingerprint:\t%s\n", r.Fingerprint)
	fmt.Fprintf(w, "Rules:\t%d (%d compiled, %d excluded)\n", s.Rules, s.Compiled, s.Excluded)
	fmt.Fprintf(w, "Condition sets:\t%d\n", s.ConditionSets)
	fmt.Fprintf(w, "Atoms:\t%d\n", s.Atoms)
	fmt.Fprintf(w, "Trie nodes:\t%d\n", s.Nodes)
	fmt.Fprintf(w, "Compile time:\t%s\n", s.Duration)

	if len(r.Excluded) > 0 {
		fmt.Fprintln(w, "\nEXCLUDED\tREASON")
		for _, e := range r.Excluded {
			fmt.Fprintf(w, "%d\t%s\n", e.RuleID, e.Reason)
		}
	}

	if len(r.Table) > 0 {
		fmt.Fprintln(w, "\nID\tATOM")
		for _, e := range r.Table {
			fmt.Fprintf(w, "%d\t%s\n", e.ID, e.Atom)
		}
	}

	if len(r.Trie) > 0 {
		fmt.Fprintln(w, "\nTRIE")
		for _, l := range r.Trie {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}
