// Package profile derives user taste profiles from the rating ledger.
package profile

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/taste"
	"github.com/okian/shaker/pkg/logger"
	"github.com/okian/shaker/pkg/metrics"
)

// Ledger is the read side of the rating ledger.
type Ledger interface {
	EventsFor(ctx context.Context, userID string) iter.Seq2[model.RatingEvent, error]
	Preferences(ctx context.Context, userID string) (model.Preferences, error)
}

// Catalog hands out the current catalog snapshot.
type Catalog interface {
	Current() *catalog.Snapshot
}

// history is everything read from the ledger for one profile.
type history struct {
	events []model.RatingEvent
	prefs  model.Preferences
}

// Aggregator builds UserProfiles. Profiles are derived on every call and
// never stored.
type Aggregator struct {
	ledger  Ledger
	catalog Catalog
	breaker *gobreaker.CircuitBreaker[history]
	log     logger.Logger

	tasteThreshold  int
	topTags         int
	topSeasons      int
	breakerFailures uint32
	breakerTimeout  time.Duration
}

// New creates an Aggregator.
func New(ledger Ledger, cat Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger:          ledger,
		catalog:         cat,
		log:             logger.New(),
		tasteThreshold:  1,
		topTags:         5,
		topSeasons:      3,
		breakerFailures: 5,
		breakerTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.breaker = gobreaker.NewCircuitBreaker[history](gobreaker.Settings{
		Name:    "ledger-read",
		Timeout: a.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= a.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about ledger health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return a
}

// Profile derives the profile of userID against the current catalog.
func (a *Aggregator) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	snap := a.catalog.Current()
	if snap == nil {
		return model.UserProfile{}, model.WrapKind("profile.build", model.ErrUnavailable, catalog.ErrNoSnapshot)
	}
	return a.ProfileAt(ctx, snap, userID)
}

// ProfileAt derives the profile of userID against a given snapshot.
func (a *Aggregator) ProfileAt(ctx context.Context, snap *catalog.Snapshot, userID string) (model.UserProfile, error) {
	start := time.Now()
	defer func() { metrics.RecordProfileLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	h, err := a.breaker.Execute(func() (history, error) { return a.read(ctx, userID) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.UserProfile{}, model.WrapKind("profile.build", model.ErrUnavailable, err)
		}
		return model.UserProfile{}, model.Wrap("profile.build", err)
	}
	return a.Build(snap, userID, h.events, h.prefs), nil
}

func (a *Aggregator) read(ctx context.Context, userID string) (history, error) {
	var h history
	for ev, err := range a.ledger.EventsFor(ctx, userID) {
		if err != nil {
			return history{}, err
		}
		h.events = append(h.events, ev)
	}
	prefs, err := a.ledger.Preferences(ctx, userID)
	if err != nil {
		return history{}, err
	}
	h.prefs = prefs
	return h, nil
}

// Build is the pure derivation of a profile from ledger entries,
// preferences and a catalog snapshot.
func (a *Aggregator) Build(snap *catalog.Snapshot, userID string, events []model.RatingEvent, prefs model.Preferences) model.UserProfile {
	latest := LatestWins(events)
	p := model.UserProfile{
		UserID:       userID,
		Likes:        prefs.Likes,
		Dislikes:     prefs.Dislikes,
		RatingsCount: len(latest),
		Latest:       latest,
	}
	p.HasTaste = p.RatingsCount >= a.tasteThreshold || !prefs.Likes.Empty()

	vz := snap.Vectorizer()
	p.Summary = a.summarize(snap, latest, vz.PositiveRating())
	p.TasteVector = vz.VectorizeUser(taste.UserInput{
		Likes:    prefs.Likes,
		Dislikes: prefs.Dislikes,
		Ratings:  Rated(snap, latest),
	})
	return p
}

// LatestWins keeps the winning event per drink id.
func LatestWins(events []model.RatingEvent) map[string]model.RatingEvent {
	out := make(map[string]model.RatingEvent, len(events))
	for _, ev := range events {
		if cur, ok := out[ev.DrinkID]; !ok || ev.After(cur) {
			out[ev.DrinkID] = ev
		}
	}
	return out
}

// Rated resolves latest ratings against the catalog, in drink id order.
// Drinks no longer in the catalog are skipped.
func Rated(snap *catalog.Snapshot, latest map[string]model.RatingEvent) []taste.Rated {
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]taste.Rated, 0, len(ids))
	for _, id := range ids {
		d, err := snap.Get(id)
		if err != nil {
			continue
		}
		out = append(out, taste.Rated{Drink: d, Rating: latest[id].Rating})
	}
	return out
}

func (a *Aggregator) summarize(snap *catalog.Snapshot, latest map[string]model.RatingEvent, positive int) model.Summary {
	spirits := map[string]int{}
	spiritLast := map[string]model.RatingEvent{}
	tags := map[string]int{}
	seasons := map[string]int{}
	for id, ev := range latest {
		if ev.Rating < positive {
			continue
		}
		d, err := snap.Get(id)
		if err != nil {
			continue
		}
		if d.PrimarySpirit != "" {
			spirits[d.PrimarySpirit]++
			if last, ok := spiritLast[d.PrimarySpirit]; !ok || ev.After(last) {
				spiritLast[d.PrimarySpirit] = ev
			}
		}
		for _, t := range d.Tags {
			tags[t]++
		}
		for _, s := range d.Season {
			seasons[s]++
		}
	}

	var s model.Summary
	for spirit, n := range spirits {
		best := spirits[s.PrimarySpirit]
		if s.PrimarySpirit == "" || n > best || (n == best && spiritLast[spirit].After(spiritLast[s.PrimarySpirit])) {
			s.PrimarySpirit = spirit
		}
	}
	s.TopTags = top(tags, a.topTags)
	s.TopSeasons = top(seasons, a.topSeasons)
	return s
}

// top returns up to n labels by descending count, ties alphabetical.
func top(counts map[string]int, n int) []string {
	if len(counts) == 0 {
		return nil
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(x, y string) int {
		if c := cmp.Compare(counts[y], counts[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	return labels[:min(n, len(labels))]
}
