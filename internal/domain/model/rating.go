package model

import "time"

// MaxUserIDBytes bounds a user id in bytes, not runes.
const MaxUserIDBytes = 128

// RatingEvent is one append-only ledger entry.
type RatingEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DrinkID   string    `json:"drink_id"`
	Rating    int       `json:"rating"`
	Tried     bool      `json:"tried"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// After reports whether e supersedes o under latest-wins ordering.
func (e RatingEvent) After(o RatingEvent) bool {
	if !e.Timestamp.Equal(o.Timestamp) {
		return e.Timestamp.After(o.Timestamp)
	}
	return e.Seq > o.Seq
}

// Likes are the positive onboarding selections.
type Likes struct {
	Spirits []string `json:"spirit" yaml:"spirit"`
	Tags    []string `json:"tags" yaml:"tags"`
	Seasons []string `json:"season" yaml:"season"`
}

// Empty reports whether no like is set.
func (l Likes) Empty() bool {
	return len(l.Spirits) == 0 && len(l.Tags) == 0 && len(l.Seasons) == 0
}

// Dislikes are the negative onboarding selections.
type Dislikes struct {
	Tags    []string `json:"tags" yaml:"tags"`
	Seasons []string `json:"season" yaml:"season"`
}

// Empty reports whether no dislike is set.
func (d Dislikes) Empty() bool {
	return len(d.Tags) == 0 && len(d.Seasons) == 0
}

// Preferences are the stored onboarding choices of one user.
type Preferences struct {
	UserID   string   `json:"user_id"`
	Likes    Likes    `json:"likes"`
	Dislikes Dislikes `json:"dislikes"`
}

// Summary condenses the loved drinks of a user.
type Summary struct {
	PrimarySpirit string   `json:"primary_spirit,omitempty"`
	TopTags       []string `json:"top_tags,omitempty"`
	TopSeasons    []string `json:"top_seasons,omitempty"`
}

// Empty reports whether the summary carries no signal.
func (s Summary) Empty() bool {
	return s.PrimarySpirit == "" && len(s.TopTags) == 0 && len(s.TopSeasons) == 0
}

// UserProfile is derived from the ledger on every read and never stored.
type UserProfile struct {
	UserID       string
	TasteVector  []float64
	Likes        Likes
	Dislikes     Dislikes
	RatingsCount int
	HasTaste     bool
	Summary      Summary
	// Latest holds the winning event per drink id.
	Latest map[string]RatingEvent
}

// PopularityDelta adjusts the positive-rating count of a drink.
type PopularityDelta struct {
	DrinkID string
	Delta   int64
}
