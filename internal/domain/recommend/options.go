package recommend

import "github.com/okian/shaker/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMaxK caps the number of results per request.
func WithMaxK(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxK = n
		}
	}
}

// WithSeedWeight sets how strongly seed drinks pull the query vector.
func WithSeedWeight(w float64) Option {
	return func(e *Engine) {
		if w >= 0 {
			e.seedWeight = w
		}
	}
}

// WithMaxReasons caps the explanations attached to one item.
func WithMaxReasons(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxReasons = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}
