package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/eotdiff/internal/render"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		output := map[string]interface{}{
			"version":                   Version,
			"commit":                    GitCommit,
			"build_date":                BuildDate,
			"machine_interface_version": 1,
			"supported_commands": []string{
				"compare", "attribute", "series", "usage", "version",
			},
			"supported_formats": []string{
				string(render.FormatTable), string(render.FormatJSON), string(render.FormatNDJSON),
				string(render.FormatYAML), string(render.FormatTSV), string(render.FormatCSV),
			},
			"supported_flags": map[string][]string{
				"output":      {"--format", "-o"},
				"matching":    {"--baseline", "--overrides"},
				"attribution": {"--assignments", "--save-assignments"},
				"series":      {"--workers", "--continue-on-error"},
			},
			"capabilities": map[string]bool{
				"flow_on_propagation": true,
				"fault_allocation":    true,
				"evidence_pack":       true,
				"window_analysis":     true,
				"daemon_sessions":     true,
			},
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "eotdiff version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
	fmt.Fprintf(cmd.OutOrStdout(), "  machine interface: v%d\n", 1)

	return nil
}
