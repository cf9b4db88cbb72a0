package taste

import (
	"github.com/okian/shaker/internal/domain/model"
)

const maxRating = 5

// Rated pairs a drink with the user's latest rating of it.
type Rated struct {
	Drink  model.Drink
	Rating int
}

// UserInput is everything a user vector is derived from.
type UserInput struct {
	Likes    model.Likes
	Dislikes model.Dislikes
	Ratings  []Rated
}

// Vectorizer maps drinks and users into the vector space of a Layout.
// It holds no mutable state and is safe for concurrent use.
type Vectorizer struct {
	layout   *Layout
	w        Weights
	positive int
	negative int
}

// New creates a Vectorizer over layout.
func New(layout *Layout, opts ...Option) *Vectorizer {
	v := &Vectorizer{
		layout:   layout,
		w:        DefaultWeights,
		positive: 4,
		negative: 2,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Layout returns the layout vectors are built against.
func (v *Vectorizer) Layout() *Layout { return v.layout }

// PositiveRating is the lowest rating treated as loved.
func (v *Vectorizer) PositiveRating() int { return v.positive }

// VectorizeDrink builds the feature vector of one drink.
func (v *Vectorizer) VectorizeDrink(d model.Drink) []float64 {
	out := make([]float64, v.layout.Dim())
	for i, axis := range v.layout.axes {
		out[i] = d.TasteProfile[axis] * v.w.Taste
	}
	if i, ok := v.layout.SpiritSlot(d.PrimarySpirit); ok {
		out[i] = v.w.Spirit
	}
	for _, t := range d.Tags {
		if i, ok := v.layout.TagSlot(t); ok {
			out[i] = v.w.Tag
		}
	}
	for _, s := range d.Season {
		if i, ok := v.layout.SeasonSlot(s); ok {
			out[i] = v.w.Season
		}
	}
	return out
}

// VectorizeUser builds a user vector from explicit preferences and rating history.
// A zero vector means there is no signal at all.
func (v *Vectorizer) VectorizeUser(in UserInput) []float64 {
	out := make([]float64, v.layout.Dim())

	// dislikes first so a label that is both liked and disliked keeps the like
	for _, t := range in.Dislikes.Tags {
		if i, ok := v.layout.TagSlot(t); ok {
			out[i] = -v.w.Dislike * v.w.Tag
		}
	}
	for _, s := range in.Dislikes.Seasons {
		if i, ok := v.layout.SeasonSlot(s); ok {
			out[i] = -v.w.Dislike * v.w.Season
		}
	}
	for _, s := range in.Likes.Spirits {
		if i, ok := v.layout.SpiritSlot(s); ok {
			out[i] = v.w.Spirit
		}
	}
	for _, t := range in.Likes.Tags {
		if i, ok := v.layout.TagSlot(t); ok {
			out[i] = v.w.Tag
		}
	}
	for _, s := range in.Likes.Seasons {
		if i, ok := v.layout.SeasonSlot(s); ok {
			out[i] = v.w.Season
		}
	}

	pos := make([]float64, len(out))
	neg := make([]float64, len(out))
	var posWeight float64
	var negCount int
	for _, r := range in.Ratings {
		switch {
		case r.Rating >= v.positive:
			w := float64(r.Rating) / maxRating
			AddScaled(pos, v.VectorizeDrink(r.Drink), w)
			posWeight += w
		case r.Rating <= v.negative:
			AddScaled(neg, v.VectorizeDrink(r.Drink), 1)
			negCount++
		}
	}
	if posWeight > 0 {
		AddScaled(out, pos, v.w.History/posWeight)
	}
	if negCount > 0 {
		AddScaled(out, neg, -v.w.NegativeHistory/float64(negCount))
	}
	return out
}

// Mean returns the element-wise mean of vectors, or nil when there are none.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	for _, vec := range vectors {
		AddScaled(out, vec, 1/float64(len(vectors)))
	}
	return out
}

// AddScaled adds w*src into dst in place.
func AddScaled(dst, src []float64, w float64) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += w * src[i]
	}
}

// IsZero reports whether every component is zero.
func IsZero(vec []float64) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
