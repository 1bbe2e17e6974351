package compare

import (
	"encoding/json"
	"sort"

	"github.com/lherron/eotdiff/internal/domain"
)

// CompareFields are always compared between matched tasks.
var CompareFields = []string{
	domain.FieldStart,
	domain.FieldFinish,
	domain.FieldDurationMinutes,
	domain.FieldPercentComplete,
	domain.FieldPredecessors,
}

// BaselineFields are compared only when baseline comparison is enabled.
var BaselineFields = []string{
	domain.FieldBaselineStart,
	domain.FieldBaselineFinish,
}

// Fields returns the compared field set.
func Fields(includeBaseline bool) []string {
	fields := append([]string{}, CompareFields...)
	if includeBaseline {
		fields = append(fields, BaselineFields...)
	}
	return fields
}

// Evidence lists the fields that differ between left and right, in field order.
func Evidence(left, right domain.Task, fields []string) []domain.ChangeField {
	evidence := []domain.ChangeField{}
	for _, f := range fields {
		lv := value(left, f)
		rv := value(right, f)
		if !deepEqual(lv, rv) {
			evidence = append(evidence, domain.ChangeField{Field: f, LeftValue: lv, RightValue: rv})
		}
	}
	return evidence
}

// value serializes a task field: dates as YYYY-MM-DD, predecessors as a
// sorted copy, absent values as nil.
func value(t domain.Task, field string) interface{} {
	switch field {
	case domain.FieldStart:
		return dateValue(t.Start)
	case domain.FieldFinish:
		return dateValue(t.Finish)
	case domain.FieldBaselineStart:
		return dateValue(t.BaselineStart)
	case domain.FieldBaselineFinish:
		return dateValue(t.BaselineFinish)
	case domain.FieldDurationMinutes:
		if t.DurationMinutes == nil {
			return nil
		}
		return *t.DurationMinutes
	case domain.FieldPercentComplete:
		if t.PercentComplete == nil {
			return nil
		}
		return *t.PercentComplete
	case domain.FieldPredecessors:
		preds := append([]int{}, t.Predecessors...)
		sort.Ints(preds)
		return preds
	}
	return nil
}

func dateValue(d *domain.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func deepEqual(a, b interface{}) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
