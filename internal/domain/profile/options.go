package profile

import (
	"time"

	"github.com/okian/shaker/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTasteThreshold sets how many distinct rated drinks make has_taste true.
func WithTasteThreshold(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.tasteThreshold = n
		}
	}
}

// WithSummaryLimits bounds top_tags and top_seasons.
func WithSummaryLimits(tags, seasons int) Option {
	return func(a *Aggregator) {
		if tags > 0 {
			a.topTags = tags
		}
		if seasons > 0 {
			a.topSeasons = seasons
		}
	}
}

// WithBreaker configures the circuit breaker guarding ledger reads.
func WithBreaker(failureThreshold int, openTimeout time.Duration) Option {
	return func(a *Aggregator) {
		if failureThreshold > 0 {
			a.breakerFailures = uint32(failureThreshold) //nolint:gosec // small positive config value
		}
		if openTimeout > 0 {
			a.breakerTimeout = openTimeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}
