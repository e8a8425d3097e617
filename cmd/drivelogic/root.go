package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"drivelogic-hq/reasoner/pkg/cli"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "drivelogic",
	Short: "Drivelogic - rule-based reasoning over driving scenes",
	Long: `Drivelogic evaluates driving scene descriptions against a rule base of
traffic rules and reports the actions to take.

Rules are sets of conditions over (subject, relation, object) atoms. Atoms
may name taxonomy classes such as "vehicle", which expand to every member
term. The compiled rule base is matched against the facts derived from
each scene; a decision policy then adds the default action, applies
exclusions and the traffic light start override.

Without --config every setting takes its default. Any setting can be
overridden with DRIVELOGIC_<SECTION>_<FIELD> environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}
