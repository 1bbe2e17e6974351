package attribution

import "github.com/lherron/eotdiff/internal/domain"

// ComputeFaultAllocation buckets slippage days by cause at task level and
// as shares of the project finish delay. It reads result only.
func ComputeFaultAllocation(result domain.CompareResult) domain.FaultAllocation {
	var task, project domain.FaultMetric
	shares := ProjectShares(result)

	for _, d := range result.Diffs {
		if !InScope(d.Status) {
			continue
		}
		taskDays := d.TaskSlippageDays
		projectDays := shares[d.RowKey]

		switch {
		case d.AttributionStatus == domain.AttributionPendingLowConfidence:
			task.ExcludedLowConfidenceDays += taskDays
			project.ExcludedLowConfidenceDays += projectDays
		default:
			bucket(&task, d.CauseTag, taskDays)
			bucket(&project, d.CauseTag, projectDays)
		}
	}

	return domain.FaultAllocation{
		ProjectFinishImpactDays: finish(project),
		TaskSlippageDays:        finish(task),
	}
}

// ProjectShares splits the project finish delay across changed rows in
// proportion to their slippage. It is empty when there is no delay or no
// changed row slipped.
func ProjectShares(result domain.CompareResult) map[string]float64 {
	base := result.Summary.ProjectFinishDelayDays
	total := 0.0
	for _, d := range result.Diffs {
		if d.Status == domain.DiffStatusChanged && d.TaskSlippageDays > 0 {
			total += d.TaskSlippageDays
		}
	}
	shares := make(map[string]float64)
	if base <= 0 || total <= 0 {
		return shares
	}
	for _, d := range result.Diffs {
		if d.Status == domain.DiffStatusChanged && d.TaskSlippageDays > 0 {
			shares[d.RowKey] = base * d.TaskSlippageDays / total
		}
	}
	return shares
}

func bucket(m *domain.FaultMetric, cause domain.CauseTag, days float64) {
	switch cause {
	case domain.CauseClient:
		m.ClientDays += days
	case domain.CauseContractor:
		m.ContractorDays += days
	case domain.CauseNeutral:
		m.NeutralDays += days
	default:
		m.UnassignedDays += days
	}
}

func finish(m domain.FaultMetric) domain.FaultMetric {
	assigned := m.ClientDays + m.ContractorDays + m.NeutralDays
	m.AssignedTotalDays = round(assigned, 3)
	if assigned > 0 {
		m.ClientPct = round(m.ClientDays/assigned*100, 2)
		m.ContractorPct = round(m.ContractorDays/assigned*100, 2)
		m.NeutralPct = round(m.NeutralDays/assigned*100, 2)
	}
	m.ClientDays = round(m.ClientDays, 3)
	m.ContractorDays = round(m.ContractorDays, 3)
	m.NeutralDays = round(m.NeutralDays, 3)
	m.UnassignedDays = round(m.UnassignedDays, 3)
	m.ExcludedLowConfidenceDays = round(m.ExcludedLowConfidenceDays, 3)
	return m
}
