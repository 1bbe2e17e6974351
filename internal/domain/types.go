package domain

import "encoding/json"

// DiffStatus is the outcome of comparing one left/right task pairing
type DiffStatus string

const (
	DiffStatusChanged   DiffStatus = "changed"
	DiffStatusAdded     DiffStatus = "added"
	DiffStatusRemoved   DiffStatus = "removed"
	DiffStatusUnchanged DiffStatus = "unchanged"
)

// ConfidenceBand buckets match confidence for review triage
type ConfidenceBand string

const (
	BandGreen ConfidenceBand = "green"
	BandAmber ConfidenceBand = "amber"
	BandRed   ConfidenceBand = "red"
)

// BandFor returns the band for a 0-100 confidence score.
func BandFor(confidence float64) ConfidenceBand {
	switch {
	case confidence >= 80:
		return BandGreen
	case confidence >= 50:
		return BandAmber
	default:
		return BandRed
	}
}

// ChangeCategory classifies what kind of change a diff row represents
type ChangeCategory string

const (
	CategoryUnchanged                 ChangeCategory = "unchanged"
	CategoryIdentityCertain           ChangeCategory = "identity_certain"
	CategoryIdentityConflict          ChangeCategory = "identity_conflict"
	CategoryDurationChange            ChangeCategory = "duration_change"
	CategoryPredecessorChange         ChangeCategory = "predecessor_change"
	CategoryDurationPredecessorChange ChangeCategory = "duration_predecessor_change"
	CategoryDateShiftFlowOn           ChangeCategory = "date_shift_flow_on"
	CategoryDateShiftUnexplained      ChangeCategory = "date_shift_unexplained"
	CategoryProgressOrBaselineChange  ChangeCategory = "progress_or_baseline_change"
	CategoryAdded                     ChangeCategory = "added"
	CategoryRemoved                   ChangeCategory = "removed"
	CategoryManualOverrideActionable  ChangeCategory = "manual_override_actionable"
)

// CauseTag names the party a delay is attributed to
type CauseTag string

const (
	CauseClient     CauseTag = "client"
	CauseContractor CauseTag = "contractor"
	CauseNeutral    CauseTag = "neutral"
	CauseUnassigned CauseTag = "unassigned"
)

// ReasonCode refines a cause tag
type ReasonCode string

const (
	ReasonNone                   ReasonCode = ""
	ReasonInstructionChange      ReasonCode = "instruction_change"
	ReasonLateInformation        ReasonCode = "late_information"
	ReasonContractorProductivity ReasonCode = "contractor_productivity"
	ReasonWeather                ReasonCode = "weather"
	ReasonThirdPartyStatutory    ReasonCode = "third_party_statutory"
	ReasonOther                  ReasonCode = "other"
)

// AttributionStatus reports whether a diff's days count toward fault totals
type AttributionStatus string

const (
	AttributionReady                AttributionStatus = "ready"
	AttributionPendingLowConfidence AttributionStatus = "pending_low_confidence"
	AttributionUnassigned           AttributionStatus = "unassigned"
)

// Field names compared between matched tasks
const (
	FieldStart           = "start"
	FieldFinish          = "finish"
	FieldDurationMinutes = "duration_minutes"
	FieldPercentComplete = "percent_complete"
	FieldPredecessors    = "predecessors"
	FieldBaselineStart   = "baseline_start"
	FieldBaselineFinish  = "baseline_finish"
)

// MatchFlagUIDRepurposeRisk marks a pairing where the same UID now names an unrelated task.
const MatchFlagUIDRepurposeRisk = "uid_repurpose_risk"

// ProtocolHint is attached to every diff row to guide cause classification.
const ProtocolHint = "Classify the dominant cause under SCL concepts: client risk event, contractor risk event, or neutral event."

// Task is the normalized programme task produced by the importers
type Task struct {
	UID             int      `json:"uid" yaml:"uid"`
	UIDInferred     bool     `json:"uid_inferred,omitempty" yaml:"uid_inferred,omitempty"`
	Name            string   `json:"name" yaml:"name"`
	WBS             *string  `json:"wbs,omitempty" yaml:"wbs,omitempty"`
	OutlineLevel    *int     `json:"outline_level,omitempty" yaml:"outline_level,omitempty"`
	IsSummary       bool     `json:"is_summary" yaml:"is_summary"`
	Start           *Date    `json:"start,omitempty" yaml:"start,omitempty"`
	Finish          *Date    `json:"finish,omitempty" yaml:"finish,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	PercentComplete *float64 `json:"percent_complete,omitempty" yaml:"percent_complete,omitempty"`
	Predecessors    []int    `json:"predecessors" yaml:"predecessors"`
	BaselineStart   *Date    `json:"baseline_start,omitempty" yaml:"baseline_start,omitempty"`
	BaselineFinish  *Date    `json:"baseline_finish,omitempty" yaml:"baseline_finish,omitempty"`
}

// LeafTasks returns the non-summary tasks in input order.
func LeafTasks(tasks []Task) []Task {
	leaves := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsSummary {
			leaves = append(leaves, t)
		}
	}
	return leaves
}

// MatchOverride pins a left task to a right task ahead of automatic matching
type MatchOverride struct {
	LeftUID  int `json:"left_uid" yaml:"left_uid"`
	RightUID int `json:"right_uid" yaml:"right_uid"`
}

// MatchCandidate is the matcher's pairing for one left task
type MatchCandidate struct {
	LeftUID          int      `json:"left_uid"`
	RightUID         int      `json:"right_uid"`
	Confidence       float64  `json:"confidence"`
	Reason           string   `json:"reason"`
	MatchNeedsReview bool     `json:"match_needs_review"`
	MatchFlags       []string `json:"match_flags"`
}

// ChangeField is one differing field with its serialized left/right values
type ChangeField struct {
	Field      string      `json:"field"`
	LeftValue  interface{} `json:"left_value"`
	RightValue interface{} `json:"right_value"`
}

// TaskDiff is one output row of a compare
type TaskDiff struct {
	RowKey              string            `json:"row_key"`
	LeftUID             *int              `json:"left_uid"`
	RightUID            *int              `json:"right_uid"`
	LeftName            *string           `json:"left_name"`
	RightName           *string           `json:"right_name"`
	LeftFinish          *Date             `json:"left_finish"`
	RightFinish         *Date             `json:"right_finish"`
	Status              DiffStatus        `json:"status"`
	Confidence          float64           `json:"confidence"`
	ConfidenceBand      ConfidenceBand    `json:"confidence_band"`
	Evidence            []ChangeField     `json:"evidence"`
	CauseTag            CauseTag          `json:"cause_tag"`
	ReasonCode          ReasonCode        `json:"reason_code"`
	AttributionStatus   AttributionStatus `json:"attribution_status"`
	TaskSlippageDays    float64           `json:"task_slippage_days"`
	IncludedInTotals    bool              `json:"included_in_totals"`
	ProtocolHint        string            `json:"protocol_hint"`
	ChangeCategory      ChangeCategory    `json:"change_category"`
	RequiresUserInput   bool              `json:"requires_user_input"`
	AutoReason          *string           `json:"auto_reason"`
	FlowOnFromRightUIDs []int             `json:"flow_on_from_right_uids"`
	AutoOverridden      bool              `json:"auto_overridden"`
	OverriddenCategory  ChangeCategory    `json:"overridden_category,omitempty"`
}

// NewTaskDiff returns a diff row with the default attribution state.
func NewTaskDiff(status DiffStatus, confidence float64) TaskDiff {
	return TaskDiff{
		Status:              status,
		Confidence:          confidence,
		ConfidenceBand:      BandFor(confidence),
		Evidence:            []ChangeField{},
		CauseTag:            CauseUnassigned,
		ReasonCode:          ReasonNone,
		AttributionStatus:   AttributionUnassigned,
		ProtocolHint:        ProtocolHint,
		ChangeCategory:      CategoryUnchanged,
		RequiresUserInput:   true,
		FlowOnFromRightUIDs: []int{},
	}
}

// DisplayName returns the left name, falling back to the right name.
func (d *TaskDiff) DisplayName() string {
	if d.LeftName != nil && *d.LeftName != "" {
		return *d.LeftName
	}
	if d.RightName != nil && *d.RightName != "" {
		return *d.RightName
	}
	return ""
}

// HasField reports whether the evidence contains a change to field.
func (d *TaskDiff) HasField(field string) bool {
	for _, c := range d.Evidence {
		if c.Field == field {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with d.
func (d TaskDiff) Clone() TaskDiff {
	out := d
	out.Evidence = append([]ChangeField{}, d.Evidence...)
	out.FlowOnFromRightUIDs = append([]int{}, d.FlowOnFromRightUIDs...)
	return out
}

// CloneDiffs deep-copies a diff slice.
func CloneDiffs(diffs []TaskDiff) []TaskDiff {
	out := make([]TaskDiff, len(diffs))
	for i, d := range diffs {
		out[i] = d.Clone()
	}
	return out
}

// CompareSummary holds the headline counts of a compare
type CompareSummary struct {
	TotalLeftLeafTasks     int     `json:"total_left_leaf_tasks"`
	TotalRightLeafTasks    int     `json:"total_right_leaf_tasks"`
	MatchedTasks           int     `json:"matched_tasks"`
	ChangedTasks           int     `json:"changed_tasks"`
	AddedTasks             int     `json:"added_tasks"`
	RemovedTasks           int     `json:"removed_tasks"`
	UnchangedTasks         int     `json:"unchanged_tasks"`
	ProjectFinishDelayDays float64 `json:"project_finish_delay_days"`
	ActionRequiredTasks    int     `json:"action_required_tasks"`
	AutoResolvedTasks      int     `json:"auto_resolved_tasks"`
	AutoFlowOnTasks        int     `json:"auto_flow_on_tasks"`
	IdentityConflictTasks  int     `json:"identity_conflict_tasks"`
}

// FaultMetric buckets days by cause with percentages over the assigned total
type FaultMetric struct {
	ClientDays                float64 `json:"client_days"`
	ContractorDays            float64 `json:"contractor_days"`
	NeutralDays               float64 `json:"neutral_days"`
	UnassignedDays            float64 `json:"unassigned_days"`
	ExcludedLowConfidenceDays float64 `json:"excluded_low_confidence_days"`
	AssignedTotalDays         float64 `json:"assigned_total_days"`
	ClientPct                 float64 `json:"client_pct"`
	ContractorPct             float64 `json:"contractor_pct"`
	NeutralPct                float64 `json:"neutral_pct"`
}

// FaultAllocation pairs the project-level and task-level metrics
type FaultAllocation struct {
	ProjectFinishImpactDays FaultMetric `json:"project_finish_impact_days"`
	TaskSlippageDays        FaultMetric `json:"task_slippage_days"`
}

// CompareResult is the complete output of one compare
type CompareResult struct {
	Summary         CompareSummary   `json:"summary"`
	Candidates      []MatchCandidate `json:"candidates"`
	Diffs           []TaskDiff       `json:"diffs"`
	FaultAllocation FaultAllocation  `json:"fault_allocation"`
}

// Clone returns a copy of r whose diffs and candidates can be modified independently.
func (r CompareResult) Clone() CompareResult {
	out := r
	out.Candidates = make([]MatchCandidate, len(r.Candidates))
	for i, c := range r.Candidates {
		c.MatchFlags = append([]string{}, c.MatchFlags...)
		out.Candidates[i] = c
	}
	out.Diffs = CloneDiffs(r.Diffs)
	return out
}

// Assignment is a persisted attribution decision for one row key
type Assignment struct {
	CauseTag             CauseTag   `json:"cause_tag" yaml:"cause_tag"`
	ReasonCode           ReasonCode `json:"reason_code" yaml:"reason_code"`
	ConfirmLowConfidence bool       `json:"confirm_low_confidence" yaml:"confirm_low_confidence"`
	OverrideAuto         bool       `json:"override_auto,omitempty" yaml:"override_auto,omitempty"`
}

// AssignmentMap is keyed by TaskDiff.RowKey
type AssignmentMap map[string]Assignment

// Clone copies the map.
func (m AssignmentMap) Clone() AssignmentMap {
	out := make(AssignmentMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AttributionAssignment sets the cause of a single row
type AttributionAssignment struct {
	RowKey               string     `json:"row_key" yaml:"row_key"`
	CauseTag             CauseTag   `json:"cause_tag" yaml:"cause_tag"`
	ReasonCode           ReasonCode `json:"reason_code" yaml:"reason_code"`
	ConfirmLowConfidence bool       `json:"confirm_low_confidence" yaml:"confirm_low_confidence"`
	OverrideAuto         bool       `json:"override_auto" yaml:"override_auto"`
}

// AttributionBulkFilter applies one assignment to every row matching all given filters.
// A nil or empty filter list places no constraint.
type AttributionBulkFilter struct {
	RowKeys              []string         `json:"row_keys,omitempty" yaml:"row_keys,omitempty"`
	Statuses             []DiffStatus     `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	ConfidenceBands      []ConfidenceBand `json:"confidence_bands,omitempty" yaml:"confidence_bands,omitempty"`
	CauseTag             CauseTag         `json:"cause_tag" yaml:"cause_tag"`
	ReasonCode           ReasonCode       `json:"reason_code" yaml:"reason_code"`
	ConfirmLowConfidence bool             `json:"confirm_low_confidence" yaml:"confirm_low_confidence"`
}

// AttributionRequest bundles per-row assignments with an optional bulk filter
type AttributionRequest struct {
	Assignments []AttributionAssignment `json:"assignments" yaml:"assignments"`
	Bulk        *AttributionBulkFilter  `json:"bulk,omitempty" yaml:"bulk,omitempty"`
}

// ApplyDefaults fills in omitted optional fields. A bulk filter without a
// cause tags its rows unassigned.
func (r *AttributionRequest) ApplyDefaults() {
	if r.Bulk != nil && r.Bulk.CauseTag == "" {
		r.Bulk.CauseTag = CauseUnassigned
	}
}

// SeriesWindow is one consecutive pair of revisions in a window analysis
type SeriesWindow struct {
	Index               int              `json:"index" yaml:"index"`
	Left                string           `json:"left" yaml:"left"`
	Right               string           `json:"right" yaml:"right"`
	Summary             *CompareSummary  `json:"summary,omitempty" yaml:"summary,omitempty"`
	FaultAllocation     *FaultAllocation `json:"fault_allocation,omitempty" yaml:"fault_allocation,omitempty"`
	CumulativeDelayDays float64          `json:"cumulative_delay_days" yaml:"cumulative_delay_days"`
	Error               string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Session event types
const (
	EventSessionCreated     = "session.created"
	EventCompareCompleted   = "compare.completed"
	EventAttributionApplied = "attribution.applied"
)

// Event is one entry in a session's audit log
type Event struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
