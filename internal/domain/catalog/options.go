package catalog

import (
	"github.com/okian/shaker/internal/domain/similarity"
	"github.com/okian/shaker/internal/domain/taste"
)

// Option applies a configuration option to snapshot building.
type Option func(*buildConfig)

type buildConfig struct {
	axes          []string
	tasteOpts     []taste.Option
	indexOpts     []similarity.Option
	vectorWorkers int
}

// WithTasteAxes fixes the numeric taste dimensions.
func WithTasteAxes(axes []string) Option {
	return func(c *buildConfig) {
		if len(axes) > 0 {
			c.axes = axes
		}
	}
}

// WithVectorizerOptions forwards options to the taste vectorizer.
func WithVectorizerOptions(opts ...taste.Option) Option {
	return func(c *buildConfig) {
		c.tasteOpts = append(c.tasteOpts, opts...)
	}
}

// WithIndexOptions forwards options to the similarity index.
func WithIndexOptions(opts ...similarity.Option) Option {
	return func(c *buildConfig) {
		c.indexOpts = append(c.indexOpts, opts...)
	}
}

// WithVectorWorkers bounds the goroutines used to vectorize the catalog.
func WithVectorWorkers(n int) Option {
	return func(c *buildConfig) {
		if n > 0 {
			c.vectorWorkers = n
		}
	}
}
