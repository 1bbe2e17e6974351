package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eotdiff",
	Short: "Programme comparison for extension-of-time analysis",
	Long: `eotdiff compares two revisions of a construction programme, classifies
every task-level change, propagates flow-on effects along predecessor links,
and splits the resulting delay between client, contractor and neutral causes.

Inputs are normalized task lists in JSON or YAML. Results render as a table,
JSON, NDJSON, YAML, TSV, or a CSV evidence pack.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides EOTDIFF_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringP("format", "o", "", "Output format: table, json, ndjson, yaml, tsv, csv (overrides EOTDIFF_OUTPUT)")
}
