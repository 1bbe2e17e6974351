package cli

import (
	"context"
	"fmt"

	"github.com/lherron/eotdiff/internal/bulk"
	"github.com/lherron/eotdiff/internal/cli/appctx"
	"github.com/lherron/eotdiff/internal/compare"
	"github.com/lherron/eotdiff/internal/parse"
	"github.com/spf13/cobra"
)

var seriesCmd = &cobra.Command{
	Use:   "series <rev0> <rev1> [rev2...]",
	Short: "Window analysis across consecutive programme revisions",
	Long: `Compares each consecutive pair of revisions (rev0->rev1, rev1->rev2, ...)
and lists the finish delay of every window with the running total.

Windows run concurrently. With --continue-on-error a failed window is reported
and the rest still run; the exit code is 5 on partial failure and 1 when every
window fails.

Examples:
  eotdiff series rev0.yaml rev1.yaml rev2.yaml rev3.yaml
  eotdiff series revs/*.json --workers 2 --format json
`,
	Args: cobra.MinimumNArgs(2),
	RunE: appctx.WithApp(runSeries),
}

var (
	seriesWorkers         int
	seriesContinueOnError bool
	seriesBaseline        bool
	seriesProgress        bool
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.Flags().IntVar(&seriesWorkers, "workers", 0, "Parallel windows (0 uses config, then CPU count)")
	seriesCmd.Flags().BoolVar(&seriesContinueOnError, "continue-on-error", false, "Keep running windows after a failure")
	seriesCmd.Flags().BoolVar(&seriesBaseline, "baseline", false, "Also compare baseline start/finish")
	seriesCmd.Flags().BoolVar(&seriesProgress, "progress", false, "Print one status line per window to stderr")
}

func runSeries(app *appctx.App, cmd *cobra.Command, args []string) error {
	windows := compare.Windows(args)
	labels := make([]string, len(windows))
	for i, w := range windows {
		labels[i] = fmt.Sprintf("%s -> %s", w.Left, w.Right)
	}

	workers := seriesWorkers
	if workers == 0 {
		workers = app.Config.Workers
	}
	op := &bulk.Operation{
		Jobs:            workers,
		ContinueOnError: seriesContinueOnError,
	}
	if seriesProgress {
		op.Progress = cmd.ErrOrStderr()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	includeBaseline := seriesBaseline || app.Config.IncludeBaseline
	result := op.Execute(ctx, labels, func(i int, _ string) error {
		left, err := parse.TasksFile(windows[i].Left)
		if err != nil {
			return err
		}
		right, err := parse.TasksFile(windows[i].Right)
		if err != nil {
			return err
		}
		compare.SetWindowResult(&windows[i], app.Comparer.Compare(compare.Input{
			Left:            left,
			Right:           right,
			IncludeBaseline: includeBaseline,
		}))
		return nil
	})
	for _, e := range result.Errors {
		windows[e.Index].Error = e.Error.Error()
	}
	compare.Accumulate(windows)

	app.Log.Info("series complete",
		"windows", result.TotalItems,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped)

	r, err := app.Renderer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := r.RenderSeries(windows); err != nil {
		return err
	}

	if result.Failed > 0 {
		return exitError(result.ExitCode(), fmt.Errorf("%d of %d windows failed", result.Failed, result.TotalItems))
	}
	return nil
}
