// Package classify assigns a change category to a matched task pairing.
package classify

import (
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/match"
)

// Auto-resolution explanations
const (
	ReasonIdentityConflict = "Potential UID repurpose detected; manual review required."
	ReasonIdentityCertain  = "Identity signature (UID, name, duration) matches; start/finish drift treated as non-actionable."
	ReasonIdentityNoChange = "Identity signature (UID, name, duration) matches with no field changes."
)

// Decision is the outcome of classifying one pairing
type Decision struct {
	Category          domain.ChangeCategory
	RequiresUserInput bool
	AutoReason        *string
}

// Classify decides the change category for a matched pair given the fields
// that differ. The first matching rule wins.
func Classify(left, right domain.Task, evidence []domain.ChangeField, matchNeedsReview bool) Decision {
	if matchNeedsReview {
		return actionable(domain.CategoryIdentityConflict, ReasonIdentityConflict)
	}

	fields := make(map[string]bool, len(evidence))
	for _, c := range evidence {
		fields[c.Field] = true
	}
	signature := match.HasIdentitySignature(left, right)

	if len(fields) == 0 {
		if signature {
			return resolved(domain.CategoryIdentityCertain, ReasonIdentityNoChange)
		}
		return Decision{Category: domain.CategoryUnchanged}
	}

	datesOnly := onlyFields(fields, domain.FieldStart, domain.FieldFinish)
	if signature && datesOnly {
		return resolved(domain.CategoryIdentityCertain, ReasonIdentityCertain)
	}

	duration := fields[domain.FieldDurationMinutes]
	predecessors := fields[domain.FieldPredecessors]
	switch {
	case duration && predecessors:
		return Decision{Category: domain.CategoryDurationPredecessorChange, RequiresUserInput: true}
	// Duration and predecessor edits dominate any dates they drag along.
	case duration:
		return Decision{Category: domain.CategoryDurationChange, RequiresUserInput: true}
	case predecessors:
		return Decision{Category: domain.CategoryPredecessorChange, RequiresUserInput: true}
	case datesOnly:
		return Decision{Category: domain.CategoryDateShiftUnexplained, RequiresUserInput: true}
	default:
		return Decision{Category: domain.CategoryProgressOrBaselineChange, RequiresUserInput: true}
	}
}

// Apply writes a decision onto a diff row.
func (d Decision) Apply(diff *domain.TaskDiff) {
	diff.ChangeCategory = d.Category
	diff.RequiresUserInput = d.RequiresUserInput
	diff.AutoReason = d.AutoReason
}

// Unmatched returns the decision for added/removed rows, which always need input.
func Unmatched(status domain.DiffStatus) Decision {
	if status == domain.DiffStatusAdded {
		return Decision{Category: domain.CategoryAdded, RequiresUserInput: true}
	}
	return Decision{Category: domain.CategoryRemoved, RequiresUserInput: true}
}

func onlyFields(fields map[string]bool, allowed ...string) bool {
	for f := range fields {
		ok := false
		for _, a := range allowed {
			if f == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func actionable(category domain.ChangeCategory, reason string) Decision {
	return Decision{Category: category, RequiresUserInput: true, AutoReason: &reason}
}

func resolved(category domain.ChangeCategory, reason string) Decision {
	return Decision{Category: category, RequiresUserInput: false, AutoReason: &reason}
}
