// Package model contains domain models passed between layers.
package model

// Drink is one immutable catalog entry. Categorical labels are lower case
// once the catalog has been normalized.
type Drink struct {
	ID            string             `json:"id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	ImageURL      string             `json:"image_url" yaml:"image_url"`
	PrimarySpirit string             `json:"primary_spirit" yaml:"primary_spirit"`
	Alcoholic     string             `json:"alcoholic,omitempty" yaml:"alcoholic,omitempty"`
	Tags          []string           `json:"tags" yaml:"tags"`
	Season        []string           `json:"season" yaml:"season"`
	Technique     string             `json:"technique" yaml:"technique"`
	Glass         string             `json:"glass" yaml:"glass"`
	Ingredients   []string           `json:"ingredients" yaml:"ingredients"`
	Brands        []string           `json:"brands,omitempty" yaml:"brands,omitempty"`
	TasteProfile  map[string]float64 `json:"taste_profile" yaml:"taste_profile"`
}

// Facets is the label vocabulary of a catalog with per-label drink counts.
type Facets struct {
	Spirits map[string]int `json:"spirits"`
	Tags    map[string]int `json:"tags"`
	Seasons map[string]int `json:"seasons"`
	Total   int            `json:"total"`
}

// Filters narrows a catalog query. Empty fields do not constrain.
type Filters struct {
	Spirit string
	Tag    string
	Season string
	Q      string
}

// Neighbor is a drink together with its distance to a query vector.
type Neighbor struct {
	Drink    Drink
	Distance float64
}
