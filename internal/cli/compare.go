package cli

import (
	"fmt"

	"github.com/lherron/eotdiff/internal/attribution"
	"github.com/lherron/eotdiff/internal/cli/appctx"
	"github.com/lherron/eotdiff/internal/compare"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/parse"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <left> <right>",
	Short: "Compare two programme revisions",
	Long: `Matches the leaf tasks of two programme revisions, classifies every change,
propagates flow-on effects, and computes the fault allocation.

Examples:
  eotdiff compare baseline.yaml update-3.yaml
  eotdiff compare left.json right.json --baseline --format json > result.json
  eotdiff compare left.json right.json --assignments causes.yaml --save-assignments causes.yaml
  eotdiff compare left.json right.json --format csv > evidence.csv
`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(runCompare),
}

var (
	compareBaseline        bool
	compareOverrides       string
	compareAssignments     string
	compareSaveAssignments string
)

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareBaseline, "baseline", false, "Also compare baseline start/finish")
	compareCmd.Flags().StringVar(&compareOverrides, "overrides", "", "File of {left_uid, right_uid} pairs to pin")
	compareCmd.Flags().StringVar(&compareAssignments, "assignments", "", "Assignment map from a previous run")
	compareCmd.Flags().StringVar(&compareSaveAssignments, "save-assignments", "", "Write the resulting assignment map to this file")
}

func runCompare(app *appctx.App, cmd *cobra.Command, args []string) error {
	left, err := parse.TasksFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load left programme: %w", err)
	}
	right, err := parse.TasksFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to load right programme: %w", err)
	}

	var overrides []domain.MatchOverride
	if compareOverrides != "" {
		overrides, err = parse.OverridesFile(compareOverrides)
		if err != nil {
			return fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	amap, err := loadAssignments(compareAssignments)
	if err != nil {
		return err
	}

	result := app.Comparer.Compare(compare.Input{
		Left:            left,
		Right:           right,
		IncludeBaseline: compareBaseline || app.Config.IncludeBaseline,
		Overrides:       overrides,
		Assignments:     amap,
	})

	if err := saveAssignments(compareSaveAssignments, attribution.BuildAssignmentMap(result.Diffs, amap)); err != nil {
		return err
	}

	r, err := app.Renderer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.RenderResult(result)
}
