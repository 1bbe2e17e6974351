package domain

import (
	"fmt"
)

// ValidationError describes a rejected input value
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCauseTag validates a cause tag
func ValidateCauseTag(tag CauseTag) error {
	switch tag {
	case CauseClient, CauseContractor, CauseNeutral, CauseUnassigned:
		return nil
	default:
		return ValidationError{Field: "cause_tag", Message: "must be one of: client, contractor, neutral, unassigned"}
	}
}

// ValidateReasonCode validates a reason code (empty is allowed)
func ValidateReasonCode(code ReasonCode) error {
	switch code {
	case ReasonNone, ReasonInstructionChange, ReasonLateInformation, ReasonContractorProductivity,
		ReasonWeather, ReasonThirdPartyStatutory, ReasonOther:
		return nil
	default:
		return ValidationError{Field: "reason_code", Message: "must be one of: instruction_change, late_information, contractor_productivity, weather, third_party_statutory, other"}
	}
}

// ValidateStatus validates a diff status
func ValidateStatus(status DiffStatus) error {
	switch status {
	case DiffStatusChanged, DiffStatusAdded, DiffStatusRemoved, DiffStatusUnchanged:
		return nil
	default:
		return ValidationError{Field: "status", Message: "must be one of: changed, added, removed, unchanged"}
	}
}

// ValidateConfidenceBand validates a confidence band
func ValidateConfidenceBand(band ConfidenceBand) error {
	switch band {
	case BandGreen, BandAmber, BandRed:
		return nil
	default:
		return ValidationError{Field: "confidence_band", Message: "must be one of: green, amber, red"}
	}
}

// ValidateTasks checks the importer contract: UIDs are unique within the
// list. Blank names and dangling predecessor references are allowed.
func ValidateTasks(tasks []Task) error {
	seen := make(map[int]bool, len(tasks))
	for i, t := range tasks {
		if seen[t.UID] {
			return ValidationError{Field: fmt.Sprintf("tasks[%d].uid", i), Message: fmt.Sprintf("duplicate uid %d", t.UID)}
		}
		seen[t.UID] = true
	}
	return nil
}

// ValidateAssignment validates a single attribution assignment
func ValidateAssignment(a AttributionAssignment) error {
	if a.RowKey == "" {
		return ValidationError{Field: "row_key", Message: "is required"}
	}
	if err := ValidateCauseTag(a.CauseTag); err != nil {
		return err
	}
	return ValidateReasonCode(a.ReasonCode)
}

// ValidateAttributionRequest validates every assignment and the bulk filter
func ValidateAttributionRequest(req AttributionRequest) error {
	for i, a := range req.Assignments {
		if err := ValidateAssignment(a); err != nil {
			return fmt.Errorf("assignments[%d]: %w", i, err)
		}
	}
	if req.Bulk == nil {
		return nil
	}
	if err := ValidateCauseTag(req.Bulk.CauseTag); err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	if err := ValidateReasonCode(req.Bulk.ReasonCode); err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	for _, s := range req.Bulk.Statuses {
		if err := ValidateStatus(s); err != nil {
			return fmt.Errorf("bulk: %w", err)
		}
	}
	for _, b := range req.Bulk.ConfidenceBands {
		if err := ValidateConfidenceBand(b); err != nil {
			return fmt.Errorf("bulk: %w", err)
		}
	}
	return nil
}
