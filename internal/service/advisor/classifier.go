package advisor

import (
	"math"

	"github.com/acadence/notification-service/internal/models"
)

// Tier thresholds in percent. Lower bounds are inclusive: exactly 75 is a
// warning, not critical.
const (
	ThresholdCritical  = 75.0
	ThresholdWarning   = 85.0
	ThresholdExcellent = 95.0

	// MinimumRequired is the hard attendance floor students must stay above.
	MinimumRequired = 75.0

	// SafetyBuffer is the stricter weekly-campaign cutoff, giving students
	// advance warning before they hit the hard floor.
	SafetyBuffer = 80.0
)

// Risk pairs a tier with its escalation priority (1 = most severe).
type Risk struct {
	Level    models.RiskLevel `json:"level"`
	Priority int              `json:"priority"`
}

// ClampPercentage forces a percentage into [0, 100].
func ClampPercentage(percentage float64) float64 {
	if percentage < 0 {
		return 0
	}
	if percentage > 100 {
		return 100
	}
	return percentage
}

// Classify maps an attendance percentage to its risk tier. Out-of-range input
// is clamped, keeping the function total.
func Classify(percentage float64) Risk {
	percentage = ClampPercentage(percentage)

	var level models.RiskLevel
	switch {
	case percentage < ThresholdCritical:
		level = models.RiskCritical
	case percentage < ThresholdWarning:
		level = models.RiskWarning
	case percentage < ThresholdExcellent:
		level = models.RiskGood
	default:
		level = models.RiskExcellent
	}

	return Risk{Level: level, Priority: level.Priority()}
}

// SessionsToRecover returns the minimal number of consecutive attended
// sessions needed to reach the 75% floor: the smallest integer x with
// (present + x) / (total + x) >= 0.75, i.e. ceil((0.75*total - present) / 0.25).
func SessionsToRecover(present, total int) int {
	if total <= 0 {
		return 0
	}

	needed := math.Ceil((0.75*float64(total) - float64(present)) / 0.25)
	if needed < 0 {
		return 0
	}
	return int(needed)
}
