package match

import (
	"math"
	"strings"

	"github.com/lherron/eotdiff/internal/domain"
	"github.com/pmezard/go-difflib/difflib"
)

// NormalizeName trims, lowercases and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NameSimilarity is the edit-similarity ratio of the normalized names, in [0,1].
func NameSimilarity(left, right string) float64 {
	a := strings.Split(NormalizeName(left), "")
	b := strings.Split(NormalizeName(right), "")
	return difflib.NewMatcher(a, b).Ratio()
}

// DateProximity scores how close two start dates are.
func DateProximity(left, right domain.Task) float64 {
	if left.Start == nil || right.Start == nil {
		return 0.5
	}
	delta := left.Start.DaysSince(*right.Start)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= 3:
		return 1.0
	case delta <= 14:
		return 0.75
	case delta <= 30:
		return 0.5
	default:
		return 0.2
	}
}

// HasIdentitySignature reports a same-UID, same-name, same-duration pairing.
// An inferred UID on either side cannot certify identity.
func HasIdentitySignature(left, right domain.Task) bool {
	if left.UIDInferred || right.UIDInferred {
		return false
	}
	return left.UID == right.UID &&
		NormalizeName(left.Name) == NormalizeName(right.Name) &&
		sameDuration(left.DurationMinutes, right.DurationMinutes)
}

// UIDRepurposeRisk reports a same-UID pairing whose names are materially different.
func UIDRepurposeRisk(left, right domain.Task) bool {
	if left.UID != right.UID {
		return false
	}
	if NormalizeName(left.Name) == NormalizeName(right.Name) {
		return false
	}
	return NameSimilarity(left.Name, right.Name) < 0.85
}

// Confidence scores a pairing on a 0-100 scale with a human-readable reason.
func Confidence(left, right domain.Task) (float64, string) {
	if HasIdentitySignature(left, right) {
		return 100.0, "Certain identity signature"
	}

	nameScore := NameSimilarity(left.Name, right.Name)
	dateScore := DateProximity(left, right)
	blended := nameScore*0.8 + dateScore*0.2

	var reason string
	switch {
	case nameScore > 0.98:
		reason = "Exact or near-exact description match"
	case nameScore > 0.90:
		reason = "Strong description similarity"
	default:
		reason = "Approximate description similarity"
	}

	return roundTo(blended*100, 1), reason
}

func sameDuration(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
