package content

import (
	"math"

	"github.com/xaenox/persona-forge/internal/models"
)

// BaselineEngagement is the score for a post type with no history.
const BaselineEngagement = 50.0

// priorWeight is how many observations the baseline is worth when blending.
const priorWeight = 3.0

// PredictEngagement blends the mean observed score for a post type with the
// baseline, moving toward the observed mean as records accumulate.
func PredictEngagement(records []models.EngagementRecord) float64 {
	if len(records) == 0 {
		return BaselineEngagement
	}
	var sum float64
	for _, r := range records {
		sum += r.Score()
	}
	n := float64(len(records))
	mean := sum / n
	w := n / (n + priorWeight)
	return math.Round((w*mean+(1-w)*BaselineEngagement)*100) / 100
}
