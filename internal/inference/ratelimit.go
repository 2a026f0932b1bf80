package inference

import (
	"math"

	"golang.org/x/time/rate"
)

// newLimiter paces requests to the runtime. A non-positive rate disables
// pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
