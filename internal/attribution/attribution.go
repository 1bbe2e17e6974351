// Package attribution tags actionable diff rows with a cause and derives the
// day-based fault split between client, contractor and neutral events.
//
// Attribution state is carried across compare runs by an AssignmentMap keyed
// by row key. The package never persists the map; callers own it.
package attribution

import (
	"fmt"
	"math"

	"github.com/lherron/eotdiff/internal/domain"
)

// LowConfidenceThreshold is the confidence below which a row's days are
// withheld from totals until the pairing is confirmed.
const LowConfidenceThreshold = 50

// InScope reports whether rows with status can carry attribution.
func InScope(status domain.DiffStatus) bool {
	switch status {
	case domain.DiffStatusChanged, domain.DiffStatusAdded, domain.DiffStatusRemoved:
		return true
	}
	return false
}

// RowKey returns the stable key "<left_uid>|<right_uid>|<status>", with
// "none" standing in for an absent side.
func RowKey(d domain.TaskDiff) string {
	return fmt.Sprintf("%s|%s|%s", uidKey(d.LeftUID), uidKey(d.RightUID), d.Status)
}

func uidKey(uid *int) string {
	if uid == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *uid)
}

// Slippage returns max(0, right - left) in days, or 0 when either is absent.
func Slippage(left, right *domain.Date) float64 {
	if left == nil || right == nil {
		return 0
	}
	days := right.DaysSince(*left)
	if days < 0 {
		return 0
	}
	return float64(days)
}

// Initialize annotates a copy of diffs with row keys, slippage, prior
// assignments and the derived attribution status.
func Initialize(diffs []domain.TaskDiff, amap domain.AssignmentMap) []domain.TaskDiff {
	out := domain.CloneDiffs(diffs)
	for i := range out {
		d := &out[i]
		d.RowKey = RowKey(*d)
		d.TaskSlippageDays = Slippage(d.LeftFinish, d.RightFinish)

		prev, ok := amap[d.RowKey]
		if ok {
			if prev.CauseTag != "" {
				d.CauseTag = prev.CauseTag
			}
			d.ReasonCode = prev.ReasonCode
		}
		overrideAuto(d, ok && prev.OverrideAuto)

		d.AttributionStatus, d.IncludedInTotals = status(*d, ok && prev.ConfirmLowConfidence)
	}
	return out
}

// overrideAuto promotes an auto-resolved row to manual review, or restores
// the pipeline's own category once the override is withdrawn.
func overrideAuto(d *domain.TaskDiff, override bool) {
	switch {
	case override && !d.RequiresUserInput:
		d.OverriddenCategory = d.ChangeCategory
		d.ChangeCategory = domain.CategoryManualOverrideActionable
		d.RequiresUserInput = true
		d.AutoOverridden = true
	case !override && d.AutoOverridden:
		d.ChangeCategory = d.OverriddenCategory
		d.OverriddenCategory = ""
		d.RequiresUserInput = false
		d.AutoOverridden = false
	}
}

func status(d domain.TaskDiff, confirmed bool) (domain.AttributionStatus, bool) {
	if !InScope(d.Status) {
		return domain.AttributionReady, false
	}
	if d.Confidence < LowConfidenceThreshold && !confirmed {
		return domain.AttributionPendingLowConfidence, false
	}
	if d.CauseTag == domain.CauseUnassigned {
		return domain.AttributionUnassigned, false
	}
	return domain.AttributionReady, true
}

// BuildAssignmentMap snapshots the current tags of diffs. Confirmation and
// override flags recorded in previous are carried forward.
func BuildAssignmentMap(diffs []domain.TaskDiff, previous domain.AssignmentMap) domain.AssignmentMap {
	out := make(domain.AssignmentMap, len(diffs))
	for _, d := range diffs {
		prev := previous[d.RowKey]
		out[d.RowKey] = domain.Assignment{
			CauseTag:             d.CauseTag,
			ReasonCode:           d.ReasonCode,
			ConfirmLowConfidence: prev.ConfirmLowConfidence,
			OverrideAuto:         prev.OverrideAuto,
		}
	}
	return out
}

// snapshot rebuilds an assignment map from a result alone. Flags come from
// the row state: promoted rows keep their override, and low-confidence rows
// that are no longer pending were confirmed.
func snapshot(diffs []domain.TaskDiff) domain.AssignmentMap {
	out := BuildAssignmentMap(diffs, nil)
	for _, d := range diffs {
		a := out[d.RowKey]
		a.OverrideAuto = d.AutoOverridden
		a.ConfirmLowConfidence = InScope(d.Status) &&
			d.Confidence < LowConfidenceThreshold &&
			d.AttributionStatus != domain.AttributionPendingLowConfidence
		out[d.RowKey] = a
	}
	return out
}

// Apply records assignments and an optional bulk assignment against result,
// then re-derives attribution state, summary action counts and the fault
// allocation. Assignments naming unknown row keys are ignored. Neither
// result nor amap is modified; the updated copies are returned.
func Apply(result domain.CompareResult, assignments []domain.AttributionAssignment, bulk *domain.AttributionBulkFilter, amap domain.AssignmentMap) (domain.CompareResult, domain.AssignmentMap) {
	out := result.Clone()
	if len(amap) == 0 {
		amap = snapshot(out.Diffs)
	} else {
		amap = amap.Clone()
	}

	index := make(map[string]int, len(out.Diffs))
	for i, d := range out.Diffs {
		index[d.RowKey] = i
	}

	for _, a := range assignments {
		i, ok := index[a.RowKey]
		if !ok {
			continue
		}
		out.Diffs[i].CauseTag = a.CauseTag
		out.Diffs[i].ReasonCode = a.ReasonCode
		amap[a.RowKey] = domain.Assignment{
			CauseTag:             a.CauseTag,
			ReasonCode:           a.ReasonCode,
			ConfirmLowConfidence: a.ConfirmLowConfidence,
			OverrideAuto:         a.OverrideAuto,
		}
	}

	if bulk != nil {
		cause := bulk.CauseTag
		if cause == "" {
			cause = domain.CauseUnassigned
		}
		for i := range out.Diffs {
			d := &out.Diffs[i]
			if !bulkMatches(bulk, d) {
				continue
			}
			d.CauseTag = cause
			d.ReasonCode = bulk.ReasonCode
			amap[d.RowKey] = domain.Assignment{
				CauseTag:             cause,
				ReasonCode:           bulk.ReasonCode,
				ConfirmLowConfidence: bulk.ConfirmLowConfidence,
				// Bulk edits say nothing about auto overrides; keep what was there.
				OverrideAuto: amap[d.RowKey].OverrideAuto,
			}
		}
	}

	out.Diffs = Initialize(out.Diffs, amap)
	RefreshActionCounts(&out.Summary, out.Diffs)
	out.FaultAllocation = ComputeFaultAllocation(out)
	return out, amap
}

func bulkMatches(f *domain.AttributionBulkFilter, d *domain.TaskDiff) bool {
	if len(f.RowKeys) > 0 && !contains(f.RowKeys, d.RowKey) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, d.Status) {
		return false
	}
	if len(f.ConfidenceBands) > 0 && !contains(f.ConfidenceBands, d.ConfidenceBand) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// RefreshActionCounts recomputes the review counters of summary from diffs.
func RefreshActionCounts(summary *domain.CompareSummary, diffs []domain.TaskDiff) {
	summary.ActionRequiredTasks = 0
	summary.AutoResolvedTasks = 0
	summary.AutoFlowOnTasks = 0
	summary.IdentityConflictTasks = 0
	for _, d := range diffs {
		if d.RequiresUserInput {
			summary.ActionRequiredTasks++
		} else {
			summary.AutoResolvedTasks++
		}
		switch d.ChangeCategory {
		case domain.CategoryDateShiftFlowOn:
			summary.AutoFlowOnTasks++
		case domain.CategoryIdentityConflict:
			summary.IdentityConflictTasks++
		}
	}
}

// AssignmentRow is the per-row attribution listing returned to callers
type AssignmentRow struct {
	RowKey            string                   `json:"row_key" yaml:"row_key"`
	CauseTag          domain.CauseTag          `json:"cause_tag" yaml:"cause_tag"`
	ReasonCode        domain.ReasonCode        `json:"reason_code" yaml:"reason_code"`
	AttributionStatus domain.AttributionStatus `json:"attribution_status" yaml:"attribution_status"`
}

// AssignmentRows lists the attribution state of every diff in result order.
func AssignmentRows(result domain.CompareResult) []AssignmentRow {
	rows := make([]AssignmentRow, 0, len(result.Diffs))
	for _, d := range result.Diffs {
		rows = append(rows, AssignmentRow{
			RowKey:            d.RowKey,
			CauseTag:          d.CauseTag,
			ReasonCode:        d.ReasonCode,
			AttributionStatus: d.AttributionStatus,
		})
	}
	return rows
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
