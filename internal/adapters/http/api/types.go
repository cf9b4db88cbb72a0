package api

import "github.com/okian/shaker/internal/domain/model"

// DrinkCard is the list representation of a drink.
type DrinkCard struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ImageURL      string   `json:"image_url,omitempty"`
	PrimarySpirit string   `json:"primary_spirit,omitempty"`
	Tags          []string `json:"tags"`
	Season        []string `json:"season"`
	Reason        []string `json:"reason,omitempty"`
}

func cardOf(d model.Drink) DrinkCard {
	c := DrinkCard{
		ID:            d.ID,
		Name:          d.Name,
		ImageURL:      d.ImageURL,
		PrimarySpirit: d.PrimarySpirit,
		Tags:          d.Tags,
		Season:        d.Season,
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Season == nil {
		c.Season = []string{}
	}
	return c
}

func cardsOf(drinks []model.Drink) []DrinkCard {
	out := make([]DrinkCard, len(drinks))
	for i, d := range drinks {
		out[i] = cardOf(d)
	}
	return out
}

// SearchResponse is the body of /drinks and /search.
type SearchResponse struct {
	Items []DrinkCard `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
}

// SimilarResponse is the body of /similar/{id}.
type SimilarResponse struct {
	Items  []DrinkCard `json:"items"`
	Source model.Drink `json:"source"`
}

// RecsRequest is the body of POST /recs.
type RecsRequest struct {
	UserID   string         `json:"user_id" validate:"userid"`
	Likes    model.Likes    `json:"likes"`
	Dislikes model.Dislikes `json:"dislikes"`
	SeedIDs  []string       `json:"seed_ids" validate:"max=50"`
	K        *int           `json:"k"`
}

// RecsResponse is the body returned by POST /recs.
type RecsResponse struct {
	Items []DrinkCard `json:"items"`
	Mode  string      `json:"mode"`
}

// RatingRequest is the body of POST /ratings. Rating is decoded as a number
// so fractional values are rejected rather than truncated.
type RatingRequest struct {
	UserID  string  `json:"user_id" validate:"userid"`
	DrinkID string  `json:"drink_id" validate:"required"`
	Rating  float64 `json:"rating" validate:"gte=1,lte=5,integral"`
	Tried   bool    `json:"tried"`
}

// RatingResponse is the body returned by POST /ratings.
type RatingResponse struct {
	Status string             `json:"status"`
	Event  *model.RatingEvent `json:"event,omitempty"`
}

// ProfileResponse is the body of GET /profile.
type ProfileResponse struct {
	UserID       string          `json:"user_id"`
	RatingsCount int             `json:"ratings_count"`
	HasTaste     bool            `json:"has_taste"`
	Likes        *model.Likes    `json:"likes,omitempty"`
	Dislikes     *model.Dislikes `json:"dislikes,omitempty"`
	Summary      *model.Summary  `json:"summary,omitempty"`
}

// PreferencesRequest is the body of PUT /preferences.
type PreferencesRequest struct {
	UserID   string         `json:"user_id" validate:"userid"`
	Likes    model.Likes    `json:"likes"`
	Dislikes model.Dislikes `json:"dislikes"`
}

// PopularEntry is one row of GET /popular.
type PopularEntry struct {
	Rank  int       `json:"rank"`
	Count int64     `json:"count"`
	Drink DrinkCard `json:"drink"`
}

// PopularResponse is the body of GET /popular.
type PopularResponse struct {
	Items []PopularEntry `json:"items"`
}

// ReloadResponse is the body of POST /admin/catalog/reload.
type ReloadResponse struct {
	Total int `json:"total"`
}
