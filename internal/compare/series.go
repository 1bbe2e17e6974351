package compare

import (
	"math"

	"github.com/lherron/eotdiff/internal/domain"
)

// Windows pairs consecutive revisions: (0,1), (1,2), and so on. Fewer than
// two revisions yield no windows.
func Windows(revisions []string) []domain.SeriesWindow {
	if len(revisions) < 2 {
		return []domain.SeriesWindow{}
	}
	windows := make([]domain.SeriesWindow, len(revisions)-1)
	for i := range windows {
		windows[i] = domain.SeriesWindow{
			Index: i + 1,
			Left:  revisions[i],
			Right: revisions[i+1],
		}
	}
	return windows
}

// SetWindowResult records a finished compare on w.
func SetWindowResult(w *domain.SeriesWindow, result domain.CompareResult) {
	summary := result.Summary
	alloc := result.FaultAllocation
	w.Summary = &summary
	w.FaultAllocation = &alloc
	w.Error = ""
}

// Accumulate fills CumulativeDelayDays as the running sum of window finish
// delays. Windows without a result contribute nothing.
func Accumulate(windows []domain.SeriesWindow) {
	total := 0.0
	for i := range windows {
		if windows[i].Summary != nil {
			total += windows[i].Summary.ProjectFinishDelayDays
		}
		windows[i].CumulativeDelayDays = math.Round(total*1000) / 1000
	}
}
