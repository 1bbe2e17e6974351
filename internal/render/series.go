package render

import (
	"encoding/csv"
	"strconv"

	"github.com/lherron/eotdiff/internal/domain"
)

// SeriesHeaders are the columns of a window analysis listing.
var SeriesHeaders = []string{
	"WINDOW", "LEFT", "RIGHT", "DELAY", "CUMULATIVE", "CHANGED", "ADDED", "REMOVED", "ACTION", "RESULT",
}

// RenderSeries writes a window analysis in the renderer's format.
func (r *Renderer) RenderSeries(windows []domain.SeriesWindow) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(windows)
	case FormatYAML:
		return r.RenderYAML(windows)
	case FormatNDJSON:
		items := make([]interface{}, len(windows))
		for i, w := range windows {
			items[i] = w
		}
		return r.RenderNDJSON(items)
	case FormatTSV:
		return r.RenderTSV(SeriesHeaders, seriesRows(windows, false))
	case FormatCSV:
		cw := csv.NewWriter(r.writer)
		if err := cw.WriteAll(append([][]string{SeriesHeaders}, seriesRows(windows, false)...)); err != nil {
			return err
		}
		return cw.Error()
	default:
		return r.RenderTable(SeriesHeaders, seriesRows(windows, r.opts.Color))
	}
}

func seriesRows(windows []domain.SeriesWindow, color bool) [][]string {
	rows := make([][]string, 0, len(windows))
	for _, w := range windows {
		row := []string{strconv.Itoa(w.Index), w.Left, w.Right}
		if w.Summary == nil {
			msg := w.Error
			if msg == "" {
				msg = "skipped"
			}
			if color {
				msg = redStyle.Render(msg)
			}
			row = append(row, "-", FormatFloat(w.CumulativeDelayDays), "-", "-", "-", "-", msg)
			rows = append(rows, row)
			continue
		}
		s := w.Summary
		result := "ok"
		if color {
			result = greenStyle.Render(result)
		}
		row = append(row,
			FormatFloat(s.ProjectFinishDelayDays),
			FormatFloat(w.CumulativeDelayDays),
			strconv.Itoa(s.ChangedTasks),
			strconv.Itoa(s.AddedTasks),
			strconv.Itoa(s.RemovedTasks),
			strconv.Itoa(s.ActionRequiredTasks),
			result,
		)
		rows = append(rows, row)
	}
	return rows
}
