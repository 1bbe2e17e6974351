package render

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/lherron/eotdiff/internal/domain"
)

// SCLNote closes every evidence pack.
const SCLNote = "Assessment support aligned to SCL Delay and Disruption Protocol concepts; not legal advice."

// EvidenceHeaders are the per-diff columns of the CSV evidence pack.
var EvidenceHeaders = []string{
	"status",
	"change_category",
	"requires_user_input",
	"auto_reason",
	"flow_on_from_right_uids",
	"auto_overridden",
	"left_uid",
	"right_uid",
	"left_name",
	"right_name",
	"confidence",
	"confidence_band",
	"cause_tag",
	"reason_code",
	"attribution_status",
	"task_slippage_days",
	"included_in_totals",
	"protocol_hint",
	"changed_fields",
}

// WriteEvidencePack writes the CSV evidence pack: one row per diff, then the
// fault allocation metrics for both measures.
func WriteEvidencePack(w io.Writer, result domain.CompareResult) error {
	cw := csv.NewWriter(w)

	rows := [][]string{EvidenceHeaders}
	for _, d := range result.Diffs {
		rows = append(rows, evidenceRow(d))
	}
	rows = append(rows,
		[]string{},
		[]string{"Fault Allocation Summary"},
		[]string{"metric", "field", "value"},
	)
	rows = append(rows, metricRows("project_finish_impact_days", result.FaultAllocation.ProjectFinishImpactDays)...)
	rows = append(rows, metricRows("task_slippage_days", result.FaultAllocation.TaskSlippageDays)...)
	rows = append(rows, []string{}, []string{"SCL Reference", SCLNote})

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func evidenceRow(d domain.TaskDiff) []string {
	return []string{
		string(d.Status),
		string(d.ChangeCategory),
		strconv.FormatBool(d.RequiresUserInput),
		derefString(d.AutoReason),
		joinInts(d.FlowOnFromRightUIDs, ","),
		strconv.FormatBool(d.AutoOverridden),
		optionalInt(d.LeftUID),
		optionalInt(d.RightUID),
		derefString(d.LeftName),
		derefString(d.RightName),
		FormatFloat(d.Confidence),
		string(d.ConfidenceBand),
		string(d.CauseTag),
		string(d.ReasonCode),
		string(d.AttributionStatus),
		FormatFloat(d.TaskSlippageDays),
		strconv.FormatBool(d.IncludedInTotals),
		d.ProtocolHint,
		ChangedFields(d.Evidence),
	}
}

// ChangedFields summarizes evidence as "field: left -> right, ...".
func ChangedFields(evidence []domain.ChangeField) string {
	parts := make([]string, len(evidence))
	for i, c := range evidence {
		parts[i] = c.Field + ": " + FormatValue(c.LeftValue) + " -> " + FormatValue(c.RightValue)
	}
	return strings.Join(parts, ", ")
}

func metricRows(label string, m domain.FaultMetric) [][]string {
	fields := []struct {
		name  string
		value float64
	}{
		{"client_days", m.ClientDays},
		{"contractor_days", m.ContractorDays},
		{"neutral_days", m.NeutralDays},
		{"unassigned_days", m.UnassignedDays},
		{"excluded_low_confidence_days", m.ExcludedLowConfidenceDays},
		{"client_pct", m.ClientPct},
		{"contractor_pct", m.ContractorPct},
		{"neutral_pct", m.NeutralPct},
	}
	rows := make([][]string, len(fields))
	for i, f := range fields {
		rows[i] = []string{label, f.name, FormatFloat(f.value)}
	}
	return rows
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}
