// Package simulate drives a running recommender with simulated users and
// checks that profiles and recommendations reflect what they rated.
package simulate

import (
	"errors"
	"time"
)

// Errors returned by Run.
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrEmptyCatalog  = errors.New("catalog has no drinks")
	ErrVerification  = errors.New("verification failed")
)

// Config holds the simulation parameters.
type Config struct {
	BaseURL        string        // Base URL of the service
	Users          int           // Number of simulated users
	RatingsPerUser int           // Rating events per user, re-rates included
	Workers        int           // Concurrent users in flight
	K              int           // Size of the /recs check
	PositiveRating int           // Lowest rating the server counts as loved
	DuplicateRate  float64       // Share of ratings resent with the same Idempotency-Key
	Seed           uint64        // Seed of the rating generator
	Timeout        time.Duration // HTTP request timeout
	OutputFile     string        // Optional JSON dump of the generated plans
	Verbose        bool          // Log every failed request
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is empty"))
	case c.Users < 1 || c.RatingsPerUser < 1 || c.Workers < 1 || c.K < 1:
		return errors.Join(ErrInvalidConfig, errors.New("users, ratings, workers and k must be positive"))
	case c.PositiveRating < 1 || c.PositiveRating > 5:
		return errors.Join(ErrInvalidConfig, errors.New("positive rating must be in [1,5]"))
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return errors.Join(ErrInvalidConfig, errors.New("duplicate rate must be in [0,1]"))
	}
	return nil
}

// Rating is one planned POST /ratings call.
type Rating struct {
	DrinkID        string `json:"drink_id"`
	Rating         int    `json:"rating"`
	Tried          bool   `json:"tried"`
	IdempotencyKey string `json:"idempotency_key"`
	Resend         bool   `json:"resend,omitempty"`
}

// Plan is the ordered rating sequence of one user.
type Plan struct {
	UserID  string   `json:"user_id"`
	Ratings []Rating `json:"ratings"`
}

// Final returns the latest rating per drink.
func (p Plan) Final() map[string]int {
	out := make(map[string]int, len(p.Ratings))
	for _, r := range p.Ratings {
		out[r.DrinkID] = r.Rating
	}
	return out
}

// Stats holds simulation counters.
type Stats struct {
	Drinks            int
	Users             int
	RatingsPlanned    int
	RatingsCreated    int
	RatingsDuplicate  int
	RatingsFailed     int
	ProfilesChecked   int
	ProfileMismatches int
	RecsChecked       int
	RecsViolations    int
	Duration          time.Duration
}
