package cli

import (
	"fmt"

	"github.com/lherron/eotdiff/internal/attribution"
	"github.com/lherron/eotdiff/internal/cli/appctx"
	"github.com/lherron/eotdiff/internal/parse"
	"github.com/spf13/cobra"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute <result.json> <request>",
	Short: "Apply cause assignments to a compare result",
	Long: `Applies per-row assignments and an optional bulk filter to a JSON compare
result, then re-derives attribution status and the fault allocation.

The request file holds {assignments: [...], bulk: {...}} in JSON or YAML.
Row keys that are not in the result are ignored.

Examples:
  eotdiff attribute result.json request.yaml
  eotdiff attribute result.json request.yaml --assignments causes.yaml --save-assignments causes.yaml
`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(runAttribute),
}

var (
	attributeAssignments     string
	attributeSaveAssignments string
)

func init() {
	rootCmd.AddCommand(attributeCmd)
	attributeCmd.Flags().StringVar(&attributeAssignments, "assignments", "", "Assignment map to start from (defaults to the result's own tags)")
	attributeCmd.Flags().StringVar(&attributeSaveAssignments, "save-assignments", "", "Write the updated assignment map to this file")
}

func runAttribute(app *appctx.App, cmd *cobra.Command, args []string) error {
	result, err := parse.ResultFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load result: %w", err)
	}
	req, err := parse.AttributionRequestFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to load attribution request: %w", err)
	}
	amap, err := loadAssignments(attributeAssignments)
	if err != nil {
		return err
	}

	updated, amap := attribution.Apply(*result, req.Assignments, req.Bulk, amap)
	app.Log.Info("attribution applied",
		"assignments", len(req.Assignments),
		"bulk", req.Bulk != nil,
		"action_required", updated.Summary.ActionRequiredTasks)

	if err := saveAssignments(attributeSaveAssignments, amap); err != nil {
		return err
	}

	r, err := app.Renderer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.RenderResult(updated)
}
