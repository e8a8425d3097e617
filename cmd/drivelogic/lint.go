package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"drivelogic-hq/reasoner/pkg/cli"
	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/diag"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/scene"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

var lintFlags struct {
	rules    string
	taxonomy string
	scenes   string
	strict   bool
	format   string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rules, taxonomy, policy and scenes",
	Long: `Validate the rule base and everything that is evaluated with it.

The lint command performs:
  - Rule base validation (duplicate ids, empty actions, malformed atoms)
  - Taxonomy validation
  - Compilation, reporting rules that would be excluded as warnings
  - Policy validation against the compiled rule base
  - Scene validation, when --scenes is given

Examples:
  # Lint the configured rule base
  drivelogic lint

  # Lint specific files, scenes included
  drivelogic lint --rules rules.yaml --taxonomy taxonomy.yaml --scenes scenes.json

  # Strict mode (warnings as errors)
  drivelogic lint --strict

  # JSON output for CI/CD
  drivelogic lint --format json`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.rules, "rules", "r", "", "rule base file (default from config)")
	lintCmd.Flags().StringVarP(&lintFlags.taxonomy, "taxonomy", "t", "", "taxonomy file (default from config)")
	lintCmd.Flags().StringVarP(&lintFlags.scenes, "scenes", "s", "", "scene file to validate")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintIssue is one finding.
type LintIssue struct {
	// Source is the file or section the issue belongs to.
	Source   string `json:"source"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// LintReport is the result of a lint run.
type LintReport struct {
	Valid    bool        `json:"valid"`
	Errors   []LintIssue `json:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty"`
}

func (r *LintReport) addError(source, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, LintIssue{Source: source, Message: msg, Severity: "error"})
}

func (r *LintReport) addWarning(source, msg string) {
	r.Warnings = append(r.Warnings, LintIssue{Source: source, Message: msg, Severity: "warning"})
}

func (r *LintReport) WriteText(w io.Writer) error {
	for _, is := range append(append([]LintIssue(nil), r.Errors...), r.Warnings...) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.ToUpper(is.Severity), is.Source, is.Message)
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ valid (%d warnings)\n", len(r.Warnings))
	} else {
		fmt.Fprintf(w, "✗ %d errors, %d warnings\n", len(r.Errors), len(r.Warnings))
	}
	return nil
}

func runLint(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rulesPath := cfg.Rules.Path
	if lintFlags.rules != "" {
		rulesPath = lintFlags.rules
	}
	taxPath := cfg.Rules.TaxonomyPath
	if lintFlags.taxonomy != "" {
		taxPath = lintFlags.taxonomy
	}

	report := lintFiles(cmd.Context(), rulesPath, taxPath, lintFlags.scenes, policyFromConfig(cfg.Policy))
	if lintFlags.strict && len(report.Warnings) > 0 {
		report.Valid = false
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("lint failed with %d errors and %d warnings", len(report.Errors), len(report.Warnings))
	}
	return nil
}

// lintFiles checks the rule base, taxonomy, policy and optional scene file.
// It collects every problem rather than stopping at the first.
func lintFiles(ctx context.Context, rulesPath, taxPath, scenesPath string, policy *engine.Policy) *LintReport {
	report := &LintReport{Valid: true}

	tax := taxonomy.Default()
	if taxPath != "" {
		t, err := rulebase.LoadTaxonomy(taxPath)
		if err != nil {
			report.addError(taxPath, err.Error())
		} else {
			tax = t
		}
	}

	rb, err := rulebase.LoadRules(rulesPath)
	if err != nil {
		var ve *rulebase.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems {
				report.addError(rulesPath, p.String())
			}
		} else {
			report.addError(rulesPath, err.Error())
		}
		return report
	}
	if !report.Valid {
		return report
	}

	rec := diag.NewRecorder()
	compiled, err := compiler.Compile(ctx, rb.Rules, tax, compiler.WithSink(rec))
	if err != nil {
		report.addError(rulesPath, err.Error())
		return report
	}
	for _, ex := range compiled.Excluded() {
		report.addWarning(rulesPath, fmt.Sprintf("rule %d excluded: %s", ex.RuleID, ex.Reason))
	}

	if err := policy.Validate(); err != nil {
		report.addError("policy", err.Error())
		return report
	}
	for _, id := range policy.Elevated {
		if !compiled.HasRule(id) && id != policy.StartRuleID {
			report.addWarning("policy", fmt.Sprintf("elevated rule %d is not in the rule base", id))
		}
	}

	eng, err := engine.New(compiled, policy)
	if err != nil {
		report.addError("policy", err.Error())
		return report
	}

	if scenesPath == "" {
		return report
	}
	scenes, ids, err := scene.LoadFile(scenesPath)
	if err != nil {
		report.addError(scenesPath, err.Error())
		return report
	}
	for _, id := range ids {
		if _, err := eng.Reason(ctx, id, scenes[id]); err != nil {
			report.addError(scenesPath+": "+id, err.Error())
		}
	}
	return report
}
