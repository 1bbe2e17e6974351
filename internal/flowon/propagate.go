// Package flowon separates schedule slippage explained by an upstream
// duration or logic change from slippage with no discoverable cause.
//
// A right-version task whose diff changes duration_minutes or predecessors is
// a root. Any date_shift_unexplained diff reachable from a root through the
// right-version successor graph becomes date_shift_flow_on and no longer
// needs user input. No other category is touched.
package flowon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lherron/eotdiff/internal/domain"
)

// Result reports what a propagation pass found
type Result struct {
	Diffs               []domain.TaskDiff
	Roots               []int
	Reclassified        int
	MissingPredecessors []int
}

// Propagate returns a copy of diffs with flow-on shifts reclassified. The
// graph is built from rightTasks, which should be the full right-version list.
func Propagate(diffs []domain.TaskDiff, rightTasks []domain.Task) Result {
	out := domain.CloneDiffs(diffs)
	graph := NewGraph(rightTasks)

	roots := Roots(out)
	reach := graph.Reach(roots)

	reclassified := 0
	for i := range out {
		d := &out[i]
		if d.ChangeCategory != domain.CategoryDateShiftUnexplained || d.RightUID == nil {
			continue
		}
		sources, ok := reach[*d.RightUID]
		if ok && len(sources) > 0 {
			reason := explain(sources)
			d.ChangeCategory = domain.CategoryDateShiftFlowOn
			d.RequiresUserInput = false
			d.AutoReason = &reason
			d.FlowOnFromRightUIDs = append([]int{}, sources...)
			reclassified++
			continue
		}
		if graph.HasMissingPredecessor(*d.RightUID) {
			// The dependency chain is incomplete, so no explanation is asserted.
			d.AutoReason = nil
		}
	}

	return Result{
		Diffs:               out,
		Roots:               roots,
		Reclassified:        reclassified,
		MissingPredecessors: graph.MissingPredecessors(),
	}
}

// Roots returns the right UIDs of diffs whose duration or predecessors changed.
func Roots(diffs []domain.TaskDiff) []int {
	var roots []int
	seen := make(map[int]bool)
	for i := range diffs {
		d := &diffs[i]
		if d.RightUID == nil || seen[*d.RightUID] {
			continue
		}
		if d.HasField(domain.FieldDurationMinutes) || d.HasField(domain.FieldPredecessors) {
			seen[*d.RightUID] = true
			roots = append(roots, *d.RightUID)
		}
	}
	return roots
}

func explain(sources []int) string {
	ids := make([]string, len(sources))
	for i, uid := range sources {
		ids[i] = strconv.Itoa(uid)
	}
	noun := "task"
	if len(sources) > 1 {
		noun = "tasks"
	}
	return fmt.Sprintf("Start/finish shift follows upstream duration or predecessor change on right %s %s.", noun, strings.Join(ids, ", "))
}
