package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lherron/eotdiff/internal/domain"
)

var (
	greenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	amberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// DiffHeaders are the columns of the tabular diff listing.
var DiffHeaders = []string{
	"STATUS", "NAME", "LEFT", "RIGHT", "CONF", "BAND", "CATEGORY",
	"ACTION", "CAUSE", "ATTRIBUTION", "SLIP", "ROW_KEY",
}

// RenderResult writes a compare result in the renderer's format.
func (r *Renderer) RenderResult(result domain.CompareResult) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(result)
	case FormatYAML:
		return r.RenderYAML(result)
	case FormatNDJSON:
		items := make([]interface{}, len(result.Diffs))
		for i, d := range result.Diffs {
			items[i] = d
		}
		return r.RenderNDJSON(items)
	case FormatTSV:
		return r.RenderTSV(DiffHeaders, r.diffRows(result.Diffs, false))
	case FormatCSV:
		return WriteEvidencePack(r.writer, result)
	default:
		return r.renderReport(result)
	}
}

func (r *Renderer) renderReport(result domain.CompareResult) error {
	s := result.Summary
	fmt.Fprintln(r.writer, r.title("Programme difference"))
	fmt.Fprintf(r.writer, "Leaf tasks: %d left, %d right | Matched: %d\n",
		s.TotalLeftLeafTasks, s.TotalRightLeafTasks, s.MatchedTasks)
	fmt.Fprintf(r.writer, "Changed: %d | Added: %d | Removed: %d | Unchanged: %d\n",
		s.ChangedTasks, s.AddedTasks, s.RemovedTasks, s.UnchangedTasks)
	fmt.Fprintf(r.writer, "Action required: %d | Auto-resolved: %d | Flow-on auto: %d | Identity conflicts: %d\n",
		s.ActionRequiredTasks, s.AutoResolvedTasks, s.AutoFlowOnTasks, s.IdentityConflictTasks)
	fmt.Fprintf(r.writer, "Project finish delay: %s days\n\n", FormatFloat(s.ProjectFinishDelayDays))

	if len(result.Diffs) > 0 {
		if err := r.RenderTable(DiffHeaders, r.diffRows(result.Diffs, r.opts.Color)); err != nil {
			return err
		}
		fmt.Fprintln(r.writer)
	}

	fmt.Fprintln(r.writer, r.title("Fault allocation"))
	headers := []string{"METRIC", "CLIENT", "CONTRACTOR", "NEUTRAL", "UNASSIGNED", "EXCLUDED", "CLIENT%", "CONTRACTOR%", "NEUTRAL%"}
	rows := [][]string{
		metricRow("project_finish_impact_days", result.FaultAllocation.ProjectFinishImpactDays),
		metricRow("task_slippage_days", result.FaultAllocation.TaskSlippageDays),
	}
	return r.RenderTable(headers, rows)
}

func (r *Renderer) title(s string) string {
	if r.opts.Color {
		return titleStyle.Render(s)
	}
	return s
}

func (r *Renderer) diffRows(diffs []domain.TaskDiff, color bool) [][]string {
	rows := make([][]string, 0, len(diffs))
	for _, d := range diffs {
		band := string(d.ConfidenceBand)
		action := "no"
		if d.RequiresUserInput {
			action = "yes"
		}
		if color {
			band = bandStyle(d.ConfidenceBand).Render(band)
			if d.RequiresUserInput {
				action = amberStyle.Render(action)
			}
		}
		rows = append(rows, []string{
			string(d.Status),
			d.DisplayName(),
			uidCell(d.LeftUID),
			uidCell(d.RightUID),
			FormatFloat(d.Confidence),
			band,
			string(d.ChangeCategory),
			action,
			string(d.CauseTag),
			string(d.AttributionStatus),
			FormatFloat(d.TaskSlippageDays),
			d.RowKey,
		})
	}
	return rows
}

func bandStyle(band domain.ConfidenceBand) lipgloss.Style {
	switch band {
	case domain.BandGreen:
		return greenStyle
	case domain.BandAmber:
		return amberStyle
	default:
		return redStyle
	}
}

func metricRow(label string, m domain.FaultMetric) []string {
	return []string{
		label,
		FormatFloat(m.ClientDays),
		FormatFloat(m.ContractorDays),
		FormatFloat(m.NeutralDays),
		FormatFloat(m.UnassignedDays),
		FormatFloat(m.ExcludedLowConfidenceDays),
		FormatFloat(m.ClientPct),
		FormatFloat(m.ContractorPct),
		FormatFloat(m.NeutralPct),
	}
}

func uidCell(uid *int) string {
	if uid == nil {
		return "-"
	}
	return strconv.Itoa(*uid)
}

// FormatFloat prints f without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatValue renders an evidence value for humans: nil as "-", lists as
// "[a, b]".
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return FormatFloat(val)
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}
