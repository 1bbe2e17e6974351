package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

//go:embed EOTDIFF-USAGE.md
var usageContent string

var usageCmd = &cobra.Command{
	Use:     "usage",
	Aliases: []string{"info"},
	Short:   "Display eotdiff usage documentation",
	Long:    `Displays the embedded EOTDIFF-USAGE.md documentation.`,
	RunE:    runUsage,
}

var usageJSON bool

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "Output as JSON")
}

func runUsage(cmd *cobra.Command, args []string) error {
	if usageJSON {
		output := map[string]interface{}{
			"content": usageContent,
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprint(cmd.OutOrStdout(), usageContent)
	return nil
}
