package simulate

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// ratingWeights skews generated ratings towards the middle and top.
var ratingWeights = [5]int{1, 2, 3, 3, 2}

// generatePlans builds one rating plan per user. Drinks may be re-rated so
// latest-wins is exercised; with DuplicateRate some ratings are resent.
func generatePlans(cfg *Config, drinkIDs []string) []Plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible load, not secrets

	plans := make([]Plan, cfg.Users)
	for u := range plans {
		p := Plan{UserID: "sim-" + uuid.NewString()}
		for range cfg.RatingsPerUser {
			r := Rating{
				DrinkID:        drinkIDs[rng.IntN(len(drinkIDs))],
				Rating:         pickRating(rng),
				Tried:          rng.IntN(2) == 0,
				IdempotencyKey: uuid.NewString(),
			}
			p.Ratings = append(p.Ratings, r)
			if rng.Float64() < cfg.DuplicateRate {
				dup := r
				dup.Resend = true
				p.Ratings = append(p.Ratings, dup)
			}
		}
		plans[u] = p
	}
	return plans
}

func pickRating(rng *rand.Rand) int {
	total := 0
	for _, w := range ratingWeights {
		total += w
	}
	n := rng.IntN(total)
	for i, w := range ratingWeights {
		if n < w {
			return i + 1
		}
		n -= w
	}
	return len(ratingWeights)
}
