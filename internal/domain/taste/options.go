package taste

// Option applies a configuration option to the Vectorizer.
type Option func(*Vectorizer)

// Weights scale the blocks of a vector and the user signals folded into it.
type Weights struct {
	Spirit          float64
	Tag             float64
	Season          float64
	Taste           float64
	Dislike         float64
	History         float64
	NegativeHistory float64
}

// DefaultWeights are the block weights of the curated catalog.
var DefaultWeights = Weights{
	Spirit:          2.0,
	Tag:             1.2,
	Season:          0.8,
	Taste:           1.0,
	Dislike:         0.5,
	History:         1.0,
	NegativeHistory: 0.5,
}

// WithWeights replaces the weights. Negative values are ignored.
func WithWeights(w Weights) Option {
	return func(v *Vectorizer) {
		set := func(dst *float64, val float64) {
			if val >= 0 {
				*dst = val
			}
		}
		set(&v.w.Spirit, w.Spirit)
		set(&v.w.Tag, w.Tag)
		set(&v.w.Season, w.Season)
		set(&v.w.Taste, w.Taste)
		set(&v.w.Dislike, w.Dislike)
		set(&v.w.History, w.History)
		set(&v.w.NegativeHistory, w.NegativeHistory)
	}
}

// WithRatingThresholds sets the loved (>= positive) and disliked (<= negative) cut-offs.
func WithRatingThresholds(positive, negative int) Option {
	return func(v *Vectorizer) {
		if positive >= 1 && positive <= 5 && negative < positive {
			v.positive = positive
			v.negative = negative
		}
	}
}
