// Package severity maps a classification and its confidence to a risk tier.
package severity

import "github.com/Brownie44l1/brainscan/internal/model"

// Severity tiers.
const (
	Low           = "Low"
	Moderate      = "Moderate"
	High          = "High"
	Indeterminate = "Indeterminate"
	Unknown       = "Unknown"
)

const (
	highThreshold     = 0.90
	moderateThreshold = 0.70
)

// Determine returns the tier for label at the given confidence in [0,1].
// A no_tumor result is always Low; both thresholds are exclusive.
func Determine(label string, confidence float64) string {
	if label == model.NoTumor {
		return Low
	}

	switch {
	case confidence > highThreshold:
		return High
	case confidence > moderateThreshold:
		return Moderate
	default:
		return Indeterminate
	}
}
