package config

import (
	"strings"
	"time"
)

// DefaultModel is the model used when no override is configured.
// Flash models have the highest request-per-minute ceilings on the free tier.
const DefaultModel = "gemini-1.5-flash-latest"

// ModelRateLimit describes the sustainable call rate for one model.
// Interval is the single source of truth for the shared quota clock; the
// RPM/RPD fields are documentation of where it comes from.
type ModelRateLimit struct {
	RequestsPerMinute int
	RequestsPerDay    int
	Interval          time.Duration
}

// modelRateLimits maps model name fragments to their rate contract.
// Intervals carry a small buffer over 60s/RPM so a clock skew on either
// side never trips the provider's limiter.
var modelRateLimits = map[string]ModelRateLimit{
	"gemini-1.5-flash": {RequestsPerMinute: 15, RequestsPerDay: 1500, Interval: 4500 * time.Millisecond},
	"gemini-2.0-flash": {RequestsPerMinute: 10, RequestsPerDay: 500, Interval: 6500 * time.Millisecond},
	"gemini-1.5-pro":   {RequestsPerMinute: 2, RequestsPerDay: 50, Interval: 31 * time.Second},
}

// defaultInterval is the conservative fallback for unknown models.
const defaultInterval = 6500 * time.Millisecond

// RateIntervalFor returns the minimum interval between oracle calls for the
// given model. Matching is by substring so versioned suffixes
// ("-latest", "-exp", date stamps) pick up their family's limit.
func RateIntervalFor(model string) time.Duration {
	lower := strings.ToLower(model)
	for fragment, limit := range modelRateLimits {
		if strings.Contains(lower, fragment) {
			return limit.Interval
		}
	}
	return defaultInterval
}
