// Package catalog holds the immutable drink catalog and its derived indices.
package catalog

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/similarity"
	"github.com/okian/shaker/internal/domain/taste"
)

// Snapshot is one immutable version of the catalog. All methods are safe for
// concurrent use; nothing reachable from a Snapshot is mutated after Build.
type Snapshot struct {
	drinks   []model.Drink // sorted by id
	byID     map[string]int
	byName   []int // indices ordered by lower-cased name, then id
	haystack []string
	facets   model.Facets

	vectorizer *taste.Vectorizer
	index      *similarity.Index
	builtAt    time.Time
}

// Build normalizes drinks and derives every index of a snapshot.
func Build(ctx context.Context, drinks []model.Drink, opts ...Option) (*Snapshot, error) {
	cfg := buildConfig{vectorWorkers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}

	norm := make([]model.Drink, len(drinks))
	seen := make(map[string]struct{}, len(drinks))
	for i, d := range drinks {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("%w: record %d", ErrEmptyID, i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}
		norm[i] = normalize(d)
	}
	slices.SortFunc(norm, func(a, b model.Drink) int { return strings.Compare(a.ID, b.ID) })

	s := &Snapshot{
		drinks:   norm,
		byID:     make(map[string]int, len(norm)),
		byName:   make([]int, len(norm)),
		haystack: make([]string, len(norm)),
		facets: model.Facets{
			Spirits: map[string]int{},
			Tags:    map[string]int{},
			Seasons: map[string]int{},
			Total:   len(norm),
		},
		builtAt: time.Now().UTC(),
	}
	for i := range norm {
		d := &norm[i]
		s.byID[d.ID] = i
		s.byName[i] = i
		s.haystack[i] = strings.ToLower(d.Name + " " + strings.Join(d.Tags, " ") + " " + strings.Join(d.Ingredients, " "))
		if d.PrimarySpirit != "" {
			s.facets.Spirits[d.PrimarySpirit]++
		}
		for _, t := range d.Tags {
			s.facets.Tags[t]++
		}
		for _, se := range d.Season {
			s.facets.Seasons[se]++
		}
	}
	slices.SortStableFunc(s.byName, func(a, b int) int {
		if c := strings.Compare(strings.ToLower(norm[a].Name), strings.ToLower(norm[b].Name)); c != 0 {
			return c
		}
		return strings.Compare(norm[a].ID, norm[b].ID)
	})

	s.vectorizer = taste.New(taste.NewLayout(cfg.axes, norm), cfg.tasteOpts...)
	vecs := make([][]float64, len(norm))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.vectorWorkers)
	for i := range norm {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs[i] = s.vectorizer.VectorizeDrink(norm[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vectorize catalog: %w", err)
	}
	s.index = similarity.NewIndex(norm, vecs, cfg.indexOpts...)
	return s, nil
}

// normalize lower-cases labels and drops empty or repeated ones.
func normalize(d model.Drink) model.Drink {
	d.PrimarySpirit = taste.Normalize(d.PrimarySpirit)
	d.Tags = labels(d.Tags)
	d.Season = labels(d.Season)
	d.Ingredients = slices.Clone(d.Ingredients)
	if d.Ingredients == nil {
		d.Ingredients = []string{}
	}
	profile := make(map[string]float64, len(d.TasteProfile))
	for k, v := range d.TasteProfile {
		profile[taste.Normalize(k)] = v
	}
	d.TasteProfile = profile
	return d
}

func labels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = taste.Normalize(l); l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// Len is the number of drinks.
func (s *Snapshot) Len() int { return len(s.drinks) }

// BuiltAt is when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Drinks returns the drinks ordered by id. Callers must not modify them.
func (s *Snapshot) Drinks() []model.Drink { return s.drinks }

// Vectorizer returns the vectorizer bound to this snapshot's layout.
func (s *Snapshot) Vectorizer() *taste.Vectorizer { return s.vectorizer }

// Index returns the similarity index over this snapshot.
func (s *Snapshot) Index() *similarity.Index { return s.index }

// Has reports whether id is in the catalog.
func (s *Snapshot) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns one drink.
func (s *Snapshot) Get(id string) (model.Drink, error) {
	i, ok := s.byID[id]
	if !ok {
		return model.Drink{}, model.NewKind("catalog.get", model.ErrNotFound, "drink %q", id)
	}
	return s.drinks[i], nil
}

// Facets returns label counts. The maps are copies.
func (s *Snapshot) Facets() model.Facets {
	return model.Facets{
		Spirits: clone(s.facets.Spirits),
		Tags:    clone(s.facets.Tags),
		Seasons: clone(s.facets.Seasons),
		Total:   s.facets.Total,
	}
}

func clone(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Query filters the catalog and returns one 1-indexed page in name order
// together with the total number of matches. A facet value absent from the
// catalog is a validation error.
func (s *Snapshot) Query(f model.Filters, page, pageSize int) ([]model.Drink, int, error) {
	if page < 1 {
		return nil, 0, model.NewKind("catalog.query", model.ErrValidation, "page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return nil, 0, model.NewKind("catalog.query", model.ErrValidation, "page_size must be >= 1, got %d", pageSize)
	}
	spirit := taste.Normalize(f.Spirit)
	tag := taste.Normalize(f.Tag)
	season := taste.Normalize(f.Season)
	for _, c := range []struct {
		facet, value string
		known        map[string]int
	}{
		{"spirit", spirit, s.facets.Spirits},
		{"tag", tag, s.facets.Tags},
		{"season", season, s.facets.Seasons},
	} {
		if _, ok := c.known[c.value]; c.value != "" && !ok {
			return nil, 0, model.WrapKind("catalog.query", model.ErrValidation,
				fmt.Errorf("%w: %s %q", ErrUnknownFacet, c.facet, c.value))
		}
	}
	tokens := strings.Fields(strings.ToLower(f.Q))

	start := (page - 1) * pageSize
	items := make([]model.Drink, 0, min(pageSize, len(s.drinks)))
	total := 0
	for _, i := range s.byName {
		d := &s.drinks[i]
		if spirit != "" && d.PrimarySpirit != spirit {
			continue
		}
		if tag != "" && !slices.Contains(d.Tags, tag) {
			continue
		}
		if season != "" && !slices.Contains(d.Season, season) {
			continue
		}
		if !matchesAll(s.haystack[i], tokens) {
			continue
		}
		if total >= start && len(items) < pageSize {
			items = append(items, *d)
		}
		total++
	}
	return items, total, nil
}

func matchesAll(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}
