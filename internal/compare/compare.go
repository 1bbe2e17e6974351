// Package compare runs the full programme diff: matching, change
// classification, flow-on propagation, attribution and fault allocation.
//
// Each stage receives the previous stage's diffs and returns a new slice;
// nothing passed in by the caller is modified.
package compare

import (
	"sort"

	"github.com/lherron/eotdiff/internal/attribution"
	"github.com/lherron/eotdiff/internal/classify"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/flowon"
	"github.com/lherron/eotdiff/internal/logging"
	"github.com/lherron/eotdiff/internal/match"
)

// Input is one compare request
type Input struct {
	Left            []domain.Task
	Right           []domain.Task
	IncludeBaseline bool
	Overrides       []domain.MatchOverride
	Assignments     domain.AssignmentMap
}

// Options configures a Comparer
type Options struct {
	Matcher match.Options
	Logger  *logging.Logger
}

// Comparer runs compares with fixed matcher options. It is safe for
// concurrent use; callers serialize access to a shared assignment map.
type Comparer struct {
	matcher *match.Matcher
	log     *logging.Logger
}

// New creates a Comparer. A nil logger discards output.
func New(opts Options) *Comparer {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	return &Comparer{matcher: match.New(opts.Matcher), log: log}
}

// CompareTasks runs a compare with default matcher options.
func CompareTasks(left, right []domain.Task, includeBaseline bool, overrides []domain.MatchOverride, amap domain.AssignmentMap) domain.CompareResult {
	return New(Options{Matcher: match.DefaultOptions()}).Compare(Input{
		Left:            left,
		Right:           right,
		IncludeBaseline: includeBaseline,
		Overrides:       overrides,
		Assignments:     amap,
	})
}

// Compare produces the complete result for in. Empty inputs yield a valid
// result with zero counts.
func (c *Comparer) Compare(in Input) domain.CompareResult {
	leftLeaves := domain.LeafTasks(in.Left)
	rightLeaves := domain.LeafTasks(in.Right)

	matched, candidates := c.matcher.Match(leftLeaves, rightLeaves, in.Overrides)
	c.log.Debug("matched tasks",
		"left_leaves", len(leftLeaves),
		"right_leaves", len(rightLeaves),
		"pairs", len(matched))

	diffs := c.buildDiffs(leftLeaves, rightLeaves, matched, candidates, Fields(in.IncludeBaseline))

	// The dependency graph spans every right task, summaries included.
	propagated := flowon.Propagate(diffs, in.Right)
	diffs = propagated.Diffs
	c.log.Debug("propagated flow-on",
		"roots", len(propagated.Roots),
		"reclassified", propagated.Reclassified,
		"missing_predecessors", len(propagated.MissingPredecessors))

	sortDiffs(diffs)

	result := domain.CompareResult{
		Summary:    summarize(diffs, len(leftLeaves), len(rightLeaves)),
		Candidates: candidates,
	}
	result.Summary.ProjectFinishDelayDays = ProjectFinishDelay(leftLeaves, rightLeaves)

	result.Diffs = attribution.Initialize(diffs, in.Assignments)
	attribution.RefreshActionCounts(&result.Summary, result.Diffs)
	result.FaultAllocation = attribution.ComputeFaultAllocation(result)

	c.log.Info("compare complete",
		"changed", result.Summary.ChangedTasks,
		"added", result.Summary.AddedTasks,
		"removed", result.Summary.RemovedTasks,
		"action_required", result.Summary.ActionRequiredTasks,
		"project_finish_delay_days", result.Summary.ProjectFinishDelayDays)
	return result
}

func (c *Comparer) buildDiffs(left, right []domain.Task, matched map[int]int, candidates []domain.MatchCandidate, fields []string) []domain.TaskDiff {
	rightByUID := make(map[int]domain.Task, len(right))
	for _, t := range right {
		rightByUID[t.UID] = t
	}
	type pair struct{ left, right int }
	candidateFor := make(map[pair]domain.MatchCandidate, len(candidates))
	for _, cand := range candidates {
		candidateFor[pair{cand.LeftUID, cand.RightUID}] = cand
	}

	diffs := make([]domain.TaskDiff, 0, len(left)+len(right))
	used := make(map[int]bool, len(matched))

	for _, l := range left {
		rightUID, ok := matched[l.UID]
		if !ok {
			d := domain.NewTaskDiff(domain.DiffStatusRemoved, 0)
			d.LeftUID = domain.IntPtr(l.UID)
			d.LeftName = domain.StringPtr(l.Name)
			d.LeftFinish = l.Finish
			classify.Unmatched(domain.DiffStatusRemoved).Apply(&d)
			diffs = append(diffs, d)
			continue
		}
		used[rightUID] = true
		r := rightByUID[rightUID]
		cand := candidateFor[pair{l.UID, rightUID}]

		evidence := Evidence(l, r, fields)
		status := domain.DiffStatusUnchanged
		if len(evidence) > 0 {
			status = domain.DiffStatusChanged
		}

		d := domain.NewTaskDiff(status, cand.Confidence)
		d.LeftUID = domain.IntPtr(l.UID)
		d.RightUID = domain.IntPtr(r.UID)
		d.LeftName = domain.StringPtr(l.Name)
		d.RightName = domain.StringPtr(r.Name)
		d.LeftFinish = l.Finish
		d.RightFinish = r.Finish
		d.Evidence = evidence
		classify.Classify(l, r, evidence, cand.MatchNeedsReview).Apply(&d)
		diffs = append(diffs, d)
	}

	for _, r := range right {
		if used[r.UID] {
			continue
		}
		d := domain.NewTaskDiff(domain.DiffStatusAdded, 0)
		d.RightUID = domain.IntPtr(r.UID)
		d.RightName = domain.StringPtr(r.Name)
		d.RightFinish = r.Finish
		classify.Unmatched(domain.DiffStatusAdded).Apply(&d)
		diffs = append(diffs, d)
	}
	return diffs
}

// ProjectFinishDelay is max(0, latest right leaf finish - latest left leaf
// finish) in days, or 0 when either side has no dated leaves.
func ProjectFinishDelay(left, right []domain.Task) float64 {
	l, lok := latestFinish(left)
	r, rok := latestFinish(right)
	if !lok || !rok {
		return 0
	}
	return attribution.Slippage(&l, &r)
}

func latestFinish(tasks []domain.Task) (domain.Date, bool) {
	var latest domain.Date
	found := false
	for _, t := range tasks {
		if t.Finish == nil {
			continue
		}
		if !found || t.Finish.After(latest) {
			latest = *t.Finish
			found = true
		}
	}
	return latest, found
}

func summarize(diffs []domain.TaskDiff, leftLeaves, rightLeaves int) domain.CompareSummary {
	s := domain.CompareSummary{
		TotalLeftLeafTasks:  leftLeaves,
		TotalRightLeafTasks: rightLeaves,
	}
	for _, d := range diffs {
		switch d.Status {
		case domain.DiffStatusChanged:
			s.ChangedTasks++
			s.MatchedTasks++
		case domain.DiffStatusUnchanged:
			s.UnchangedTasks++
			s.MatchedTasks++
		case domain.DiffStatusAdded:
			s.AddedTasks++
		case domain.DiffStatusRemoved:
			s.RemovedTasks++
		}
	}
	return s
}

// sortDiffs orders rows by status then display name, keeping input order on ties.
func sortDiffs(diffs []domain.TaskDiff) {
	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Status != diffs[j].Status {
			return diffs[i].Status < diffs[j].Status
		}
		return diffs[i].DisplayName() < diffs[j].DisplayName()
	})
}
