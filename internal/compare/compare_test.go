package compare

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/lherron/eotdiff/internal/attribution"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/logging"
	"github.com/lherron/eotdiff/internal/match"
	"github.com/lherron/eotdiff/internal/testutil"
)

var task = testutil.Task

func TestCompare_LeafFilteringAndSummaryCounts(t *testing.T) {
	left := []domain.Task{
		task(1, "Summary", "2025-01-01", "2025-01-10", testutil.Summary()),
		task(2, "Excavate", "2025-01-01", "2025-01-04"),
	}
	right := []domain.Task{
		task(10, "Summary", "2025-01-01", "2025-01-10", testutil.Summary()),
		task(20, "Excavate", "2025-01-02", "2025-01-05"),
	}

	result := CompareTasks(left, right, false, nil, nil)

	s := result.Summary
	if s.TotalLeftLeafTasks != 1 || s.TotalRightLeafTasks != 1 {
		t.Errorf("leaf totals = %d/%d, want 1/1", s.TotalLeftLeafTasks, s.TotalRightLeafTasks)
	}
	if s.ChangedTasks != 1 || s.MatchedTasks != 1 {
		t.Errorf("changed=%d matched=%d", s.ChangedTasks, s.MatchedTasks)
	}
	if s.ActionRequiredTasks != 1 {
		t.Errorf("action required = %d, want 1", s.ActionRequiredTasks)
	}
}

func TestCompare_OverrideControlsMatch(t *testing.T) {
	left := []domain.Task{task(1, "Install steel", "2025-01-01", "2025-01-10")}
	right := []domain.Task{
		task(20, "Install steel", "2025-01-01", "2025-01-10"),
		task(30, "Install steel", "2025-02-01", "2025-02-10"),
	}

	result := CompareTasks(left, right, false, []domain.MatchOverride{{LeftUID: 1, RightUID: 30}}, nil)

	var changed []domain.TaskDiff
	for _, d := range result.Diffs {
		if d.Status == domain.DiffStatusChanged {
			changed = append(changed, d)
		}
	}
	if len(changed) != 1 || *changed[0].RightUID != 30 {
		t.Fatalf("expected one changed row against uid 30, got %+v", changed)
	}
	if !strings.HasPrefix(result.Candidates[0].Reason, "Manual override. ") {
		t.Errorf("reason = %q", result.Candidates[0].Reason)
	}
}

func TestCompare_IdentityCertainDateShift(t *testing.T) {
	left := []domain.Task{task(10, "Pour concrete", "2025-01-01", "2025-01-03", testutil.Duration(960))}
	right := []domain.Task{task(10, "Pour concrete", "2025-01-02", "2025-01-04", testutil.Duration(960))}

	result := CompareTasks(left, right, false, nil, nil)

	if len(result.Diffs) != 1 {
		t.Fatalf("got %d diffs, want 1", len(result.Diffs))
	}
	d := result.Diffs[0]
	if d.ChangeCategory != domain.CategoryIdentityCertain || d.RequiresUserInput {
		t.Errorf("got (%s, %v), want (identity_certain, false)", d.ChangeCategory, d.RequiresUserInput)
	}
	if result.Summary.ActionRequiredTasks != 0 || result.Summary.AutoResolvedTasks != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
}

func TestCompare_IdentityCertainIsSymmetric(t *testing.T) {
	a := []domain.Task{task(10, "Pour concrete", "2025-01-01", "2025-01-03", testutil.Duration(960))}
	b := []domain.Task{task(10, "Pour Concrete ", "2025-01-02", "2025-01-04", testutil.Duration(960))}

	forward := CompareTasks(a, b, false, nil, nil)
	backward := CompareTasks(b, a, false, nil, nil)

	for _, r := range []domain.CompareResult{forward, backward} {
		if r.Diffs[0].Confidence != 100 || r.Diffs[0].ChangeCategory != domain.CategoryIdentityCertain {
			t.Errorf("got confidence %v category %s", r.Diffs[0].Confidence, r.Diffs[0].ChangeCategory)
		}
	}
}

func TestCompare_InferredUIDNotCertain(t *testing.T) {
	left := []domain.Task{task(10, "Pour concrete", "2025-01-01", "2025-01-03", testutil.Duration(960), testutil.Inferred())}
	right := []domain.Task{task(10, "Pour concrete", "2025-01-02", "2025-01-04", testutil.Duration(960), testutil.Inferred())}

	d := CompareTasks(left, right, false, nil, nil).Diffs[0]

	if d.ChangeCategory == domain.CategoryIdentityCertain {
		t.Error("inferred UIDs must not be identity certain")
	}
	if !d.RequiresUserInput {
		t.Error("expected actionable diff")
	}
}

func TestCompare_MaterialRenameIsIdentityConflict(t *testing.T) {
	left := []domain.Task{task(1, "Install piles", "2025-01-01", "2025-01-02")}
	right := []domain.Task{task(1, "Airport handover closeout", "2025-01-01", "2025-01-02")}

	result := CompareTasks(left, right, false, nil, nil)

	d := result.Diffs[0]
	if d.ChangeCategory != domain.CategoryIdentityConflict || !d.RequiresUserInput {
		t.Errorf("got (%s, %v), want (identity_conflict, true)", d.ChangeCategory, d.RequiresUserInput)
	}
	if result.Summary.IdentityConflictTasks != 1 {
		t.Errorf("identity conflicts = %d, want 1", result.Summary.IdentityConflictTasks)
	}
}

func TestCompare_DurationAndPredecessorChange(t *testing.T) {
	left := []domain.Task{task(1, "Task A", "2025-01-01", "2025-01-02", testutil.Predecessors(7))}
	right := []domain.Task{task(10, "Task A", "2025-01-01", "2025-01-03", testutil.Duration(960), testutil.Predecessors(9))}

	d := CompareTasks(left, right, false, nil, nil).Diffs[0]

	if d.ChangeCategory != domain.CategoryDurationPredecessorChange || !d.RequiresUserInput {
		t.Errorf("got (%s, %v)", d.ChangeCategory, d.RequiresUserInput)
	}
}

func TestCompare_FlowOn(t *testing.T) {
	left := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-02"),
		task(2, "Downstream", "2025-01-03", "2025-01-04", testutil.Predecessors(1)),
	}
	right := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-04", testutil.Duration(960)),
		task(20, "Downstream", "2025-01-05", "2025-01-06", testutil.Predecessors(1)),
	}

	result := CompareTasks(left, right, false, nil, nil)
	down := testutil.FindDiff(t, result.Diffs, "Downstream")

	if down.ChangeCategory != domain.CategoryDateShiftFlowOn || down.RequiresUserInput {
		t.Errorf("got (%s, %v), want (date_shift_flow_on, false)", down.ChangeCategory, down.RequiresUserInput)
	}
	if !reflect.DeepEqual(down.FlowOnFromRightUIDs, []int{1}) {
		t.Errorf("flow-on sources = %v, want [1]", down.FlowOnFromRightUIDs)
	}
	if down.IncludedInTotals {
		t.Error("unassigned flow-on row must not count toward totals")
	}
	if result.Summary.AutoFlowOnTasks != 1 {
		t.Errorf("auto flow-on = %d, want 1", result.Summary.AutoFlowOnTasks)
	}
}

func TestCompare_MissingPredecessorStaysActionable(t *testing.T) {
	left := []domain.Task{
		task(2, "Downstream", "2025-01-03", "2025-01-04", testutil.Predecessors(999)),
		task(3, "Root", "2025-01-01", "2025-01-02"),
	}
	right := []domain.Task{
		task(20, "Downstream", "2025-01-04", "2025-01-05", testutil.Predecessors(999)),
		task(30, "Root", "2025-01-01", "2025-01-03", testutil.Duration(960)),
	}

	down := testutil.FindDiff(t, CompareTasks(left, right, false, nil, nil).Diffs, "Downstream")

	if down.ChangeCategory != domain.CategoryDateShiftUnexplained || !down.RequiresUserInput {
		t.Errorf("got (%s, %v), want (date_shift_unexplained, true)", down.ChangeCategory, down.RequiresUserInput)
	}
}

func TestCompare_AddedAndRemoved(t *testing.T) {
	removed := CompareTasks(
		[]domain.Task{task(1, "Task A", "2025-01-01", "2025-01-02"), task(2, "Task B", "2025-01-03", "2025-01-04")},
		[]domain.Task{task(10, "Task A", "2025-01-01", "2025-01-02")},
		false, nil, nil)
	r := testutil.FindDiff(t, removed.Diffs, "Task B")
	if r.Status != domain.DiffStatusRemoved || r.ChangeCategory != domain.CategoryRemoved || !r.RequiresUserInput {
		t.Errorf("removed row = %+v", r)
	}
	if r.Confidence != 0 || r.ConfidenceBand != domain.BandRed {
		t.Errorf("removed confidence = %v %s", r.Confidence, r.ConfidenceBand)
	}

	added := CompareTasks(
		[]domain.Task{task(1, "Task A", "2025-01-01", "2025-01-02")},
		[]domain.Task{task(10, "Task A", "2025-01-01", "2025-01-02"), task(20, "Task C", "2025-01-05", "2025-01-06")},
		false, nil, nil)
	a := testutil.FindDiff(t, added.Diffs, "Task C")
	if a.Status != domain.DiffStatusAdded || a.ChangeCategory != domain.CategoryAdded || !a.RequiresUserInput {
		t.Errorf("added row = %+v", a)
	}
	if added.Summary.AddedTasks != 1 || added.Summary.UnchangedTasks != 1 {
		t.Errorf("summary = %+v", added.Summary)
	}
}

func TestCompare_EmptyInputs(t *testing.T) {
	result := CompareTasks(nil, nil, false, nil, nil)

	if len(result.Diffs) != 0 || len(result.Candidates) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Summary != (domain.CompareSummary{}) {
		t.Errorf("expected zero summary, got %+v", result.Summary)
	}
}

func TestCompare_BaselineFields(t *testing.T) {
	left := []domain.Task{task(1, "Pour", "2025-01-01", "2025-01-02", testutil.Baseline("2025-01-01", "2025-01-02"))}
	right := []domain.Task{task(1, "Pour", "2025-01-01", "2025-01-02", testutil.Baseline("2025-01-05", "2025-01-06"))}

	without := CompareTasks(left, right, false, nil, nil)
	if without.Diffs[0].Status != domain.DiffStatusUnchanged {
		t.Errorf("baseline ignored: status = %s", without.Diffs[0].Status)
	}

	with := CompareTasks(left, right, true, nil, nil)
	d := with.Diffs[0]
	if d.Status != domain.DiffStatusChanged || !d.HasField(domain.FieldBaselineStart) || !d.HasField(domain.FieldBaselineFinish) {
		t.Errorf("expected baseline evidence, got %+v", d.Evidence)
	}
	if d.ChangeCategory != domain.CategoryProgressOrBaselineChange {
		t.Errorf("category = %s", d.ChangeCategory)
	}
}

func TestCompare_PredecessorOrderIgnored(t *testing.T) {
	left := []domain.Task{task(1, "Pour", "2025-01-01", "2025-01-02", testutil.Predecessors(3, 2))}
	right := []domain.Task{task(1, "Pour", "2025-01-01", "2025-01-02", testutil.Predecessors(2, 3))}

	d := CompareTasks(left, right, false, nil, nil).Diffs[0]
	if d.Status != domain.DiffStatusUnchanged {
		t.Errorf("status = %s, evidence %+v", d.Status, d.Evidence)
	}
}

func TestCompare_SortsByStatusThenName(t *testing.T) {
	left := []domain.Task{
		task(1, "Zeta", "2025-01-01", "2025-01-02"),
		task(2, "Alpha", "2025-01-01", "2025-01-02"),
		task(3, "Gone", "2025-06-01", "2025-06-02"),
	}
	right := []domain.Task{
		task(1, "Zeta", "2025-01-01", "2025-01-03"),
		task(2, "Alpha", "2025-01-01", "2025-01-02"),
	}

	result := CompareTasks(left, right, false, nil, nil)

	var got []string
	for _, d := range result.Diffs {
		got = append(got, string(d.Status)+":"+d.DisplayName())
	}
	want := []string{"changed:Zeta", "removed:Gone", "unchanged:Alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestCompare_ProjectFinishDelay(t *testing.T) {
	tests := []struct {
		name        string
		left, right []domain.Task
		want        float64
	}{
		{
			name:  "late finish",
			left:  []domain.Task{task(1, "A", "2025-01-01", "2025-01-05")},
			right: []domain.Task{task(1, "A", "2025-01-01", "2025-01-09")},
			want:  4,
		},
		{
			name:  "early finish clamps",
			left:  []domain.Task{task(1, "A", "2025-01-01", "2025-01-09")},
			right: []domain.Task{task(1, "A", "2025-01-01", "2025-01-05")},
			want:  0,
		},
		{
			name:  "undated side",
			left:  []domain.Task{task(1, "A", "", "")},
			right: []domain.Task{task(1, "A", "2025-01-01", "2025-01-05")},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProjectFinishDelay(tt.left, tt.right); got != tt.want {
				t.Errorf("delay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompare_LowConfidenceDefaultsToPending(t *testing.T) {
	left := []domain.Task{task(1, "Concrete pour section A", "2025-01-01", "2025-01-05")}
	right := []domain.Task{task(2, "Utility shutdown permit", "2025-01-01", "2025-01-08")}

	result := CompareTasks(left, right, false, nil, nil)
	d := result.Diffs[0]

	if d.CauseTag != domain.CauseUnassigned || d.AttributionStatus != domain.AttributionPendingLowConfidence {
		t.Errorf("got (%s, %s)", d.CauseTag, d.AttributionStatus)
	}
	testutil.AssertFloat(t, "excluded", result.FaultAllocation.TaskSlippageDays.ExcludedLowConfidenceDays, 3)

	updated, _ := attribution.Apply(result, []domain.AttributionAssignment{{
		RowKey:               d.RowKey,
		CauseTag:             domain.CauseClient,
		ReasonCode:           domain.ReasonLateInformation,
		ConfirmLowConfidence: true,
	}}, nil, nil)
	if updated.Diffs[0].AttributionStatus != domain.AttributionReady {
		t.Errorf("status = %s, want ready", updated.Diffs[0].AttributionStatus)
	}
	testutil.AssertFloat(t, "client", updated.FaultAllocation.TaskSlippageDays.ClientDays, 3)
}

func TestCompare_AssignmentsPersistAcrossRuns(t *testing.T) {
	left := []domain.Task{
		task(1, "Task A", "2025-01-01", "2025-01-05"),
		task(2, "Task B", "2025-01-01", "2025-01-05"),
	}
	right := []domain.Task{
		task(11, "Task A", "2025-01-01", "2025-01-09"),
		task(12, "Task B", "2025-01-01", "2025-01-07"),
	}

	first := CompareTasks(left, right, false, nil, nil)
	a := testutil.FindDiff(t, first.Diffs, "Task A")
	b := testutil.FindDiff(t, first.Diffs, "Task B")

	updated, amap := attribution.Apply(first, []domain.AttributionAssignment{
		{RowKey: a.RowKey, CauseTag: domain.CauseClient, ConfirmLowConfidence: true},
		{RowKey: b.RowKey, CauseTag: domain.CauseContractor, ConfirmLowConfidence: true},
	}, nil, nil)

	project := updated.FaultAllocation.ProjectFinishImpactDays
	if project.ClientDays <= project.ContractorDays {
		t.Errorf("client %v should exceed contractor %v", project.ClientDays, project.ContractorDays)
	}
	testutil.AssertFloat(t, "project total", project.ClientDays+project.ContractorDays, 4)

	second := CompareTasks(left, right, false, nil, amap)
	if got := testutil.FindDiff(t, second.Diffs, "Task A"); got.RowKey != a.RowKey || got.CauseTag != domain.CauseClient {
		t.Errorf("rerun lost assignment: %s %s", got.RowKey, got.CauseTag)
	}
	if second.FaultAllocation != updated.FaultAllocation {
		t.Errorf("rerun allocation differs:\n%+v\n%+v", second.FaultAllocation, updated.FaultAllocation)
	}
}

func TestCompare_OverrideAutoSurvivesRerun(t *testing.T) {
	left := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-02"),
		task(2, "Downstream", "2025-01-03", "2025-01-04", testutil.Predecessors(1)),
	}
	right := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-04", testutil.Duration(960)),
		task(22, "Downstream", "2025-01-05", "2025-01-06", testutil.Predecessors(1)),
	}

	first := CompareTasks(left, right, false, nil, nil)
	flow := testutil.FindDiff(t, first.Diffs, "Downstream")

	_, amap := attribution.Apply(first, []domain.AttributionAssignment{{
		RowKey:               flow.RowKey,
		CauseTag:             domain.CauseClient,
		ReasonCode:           domain.ReasonLateInformation,
		ConfirmLowConfidence: true,
		OverrideAuto:         true,
	}}, nil, nil)

	second := CompareTasks(left, right, false, nil, amap)
	promoted := testutil.FindDiff(t, second.Diffs, "Downstream")
	if promoted.ChangeCategory != domain.CategoryManualOverrideActionable || !promoted.RequiresUserInput || !promoted.AutoOverridden {
		t.Errorf("got (%s, %v, %v)", promoted.ChangeCategory, promoted.RequiresUserInput, promoted.AutoOverridden)
	}
	if second.Summary.AutoFlowOnTasks != 0 {
		t.Errorf("auto flow-on = %d after override", second.Summary.AutoFlowOnTasks)
	}
}

func TestCompare_OverrideAutoCanBeWithdrawn(t *testing.T) {
	left := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-02"),
		task(2, "Downstream", "2025-01-03", "2025-01-04", testutil.Predecessors(1)),
	}
	right := []domain.Task{
		task(1, "Root", "2025-01-01", "2025-01-04", testutil.Duration(960)),
		task(22, "Downstream", "2025-01-05", "2025-01-06", testutil.Predecessors(1)),
	}

	first := CompareTasks(left, right, false, nil, nil)
	key := testutil.FindDiff(t, first.Diffs, "Downstream").RowKey

	promoted, amap := attribution.Apply(first, []domain.AttributionAssignment{{
		RowKey:       key,
		CauseTag:     domain.CauseClient,
		OverrideAuto: true,
	}}, nil, nil)
	if d := testutil.FindDiff(t, promoted.Diffs, "Downstream"); !d.AutoOverridden {
		t.Fatalf("row not promoted: %s", d.ChangeCategory)
	}

	reverted, amap := attribution.Apply(promoted, []domain.AttributionAssignment{{
		RowKey:   key,
		CauseTag: domain.CauseClient,
	}}, nil, amap)
	d := testutil.FindDiff(t, reverted.Diffs, "Downstream")
	if d.ChangeCategory != domain.CategoryDateShiftFlowOn || d.RequiresUserInput || d.AutoOverridden {
		t.Errorf("revert: got (%s, %v, %v)", d.ChangeCategory, d.RequiresUserInput, d.AutoOverridden)
	}
	if amap[key].OverrideAuto {
		t.Error("assignment map still carries the override")
	}
	if reverted.Summary.AutoFlowOnTasks != 1 || reverted.Summary.ActionRequiredTasks != promoted.Summary.ActionRequiredTasks-1 {
		t.Errorf("summary after revert = %+v", reverted.Summary)
	}

	rerun := CompareTasks(left, right, false, nil, attribution.BuildAssignmentMap(reverted.Diffs, nil))
	d = testutil.FindDiff(t, rerun.Diffs, "Downstream")
	if d.ChangeCategory != domain.CategoryDateShiftFlowOn || d.RequiresUserInput || d.AutoOverridden {
		t.Errorf("rerun: got (%s, %v, %v)", d.ChangeCategory, d.RequiresUserInput, d.AutoOverridden)
	}
	if d.CauseTag != domain.CauseClient {
		t.Errorf("rerun cause = %s", d.CauseTag)
	}
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	left := []domain.Task{task(1, "A", "2025-01-01", "2025-01-02", testutil.Predecessors(3, 2))}
	right := []domain.Task{task(1, "A", "2025-01-01", "2025-01-04", testutil.Predecessors(3, 2))}
	amap := domain.AssignmentMap{"1|1|changed": {CauseTag: domain.CauseNeutral}}

	_ = CompareTasks(left, right, false, nil, amap)

	if !reflect.DeepEqual(left[0].Predecessors, []int{3, 2}) {
		t.Errorf("predecessors reordered: %v", left[0].Predecessors)
	}
	if len(amap) != 1 || amap["1|1|changed"].CauseTag != domain.CauseNeutral {
		t.Errorf("assignment map modified: %v", amap)
	}
}

func TestComparer_Logs(t *testing.T) {
	var buf bytes.Buffer
	c := New(Options{Matcher: match.DefaultOptions(), Logger: logging.New(&buf, logging.LevelDebug)})

	c.Compare(Input{
		Left:  []domain.Task{task(1, "A", "2025-01-01", "2025-01-02")},
		Right: []domain.Task{task(1, "A", "2025-01-01", "2025-01-02")},
	})

	out := buf.String()
	for _, msg := range []string{"matched tasks", "propagated flow-on", "compare complete"} {
		if !strings.Contains(out, msg) {
			t.Errorf("log missing %q:\n%s", msg, out)
		}
	}
}
