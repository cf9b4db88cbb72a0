// Package recommend ranks drinks for a user and finds similar drinks.
package recommend

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/profile"
	"github.com/okian/shaker/internal/domain/taste"
	"github.com/okian/shaker/pkg/logger"
	"github.com/okian/shaker/pkg/metrics"
)

// Ranking modes.
const (
	ModeSimilarity = "similarity"
	ModePopularity = "popularity"
	ModeDegraded   = "degraded"
)

// Profiles derives a user's profile against a snapshot.
type Profiles interface {
	ProfileAt(ctx context.Context, snap *catalog.Snapshot, userID string) (model.UserProfile, error)
}

// Popularity walks drinks by descending positive-rating count, ties by id.
// fn returns false to stop.
type Popularity interface {
	Each(ctx context.Context, fn func(drinkID string, count int64) bool) error
}

// Catalog hands out the current catalog snapshot.
type Catalog interface {
	Current() *catalog.Snapshot
}

// Request is one recommendation query. Non-empty like/dislike fields
// override the user's stored preferences field by field.
type Request struct {
	UserID   string
	Likes    model.Likes
	Dislikes model.Dislikes
	SeedIDs  []string
	K        int
}

// Item is one ranked drink with its explanations.
type Item struct {
	Drink    model.Drink
	Reasons  []string
	Distance float64
}

// Result is a ranked list and the mode that produced it.
type Result struct {
	Items []Item
	Mode  string
}

// Engine ranks catalog drinks against user profiles.
type Engine struct {
	catalog    Catalog
	profiles   Profiles
	popularity Popularity
	log        logger.Logger

	maxK       int
	seedWeight float64
	maxReasons int
}

// New creates an Engine.
func New(cat Catalog, profiles Profiles, popularity Popularity, opts ...Option) *Engine {
	e := &Engine{
		catalog:    cat,
		profiles:   profiles,
		popularity: popularity,
		log:        logger.New(),
		maxK:       200,
		seedWeight: 0.7,
		maxReasons: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) snapshot(op string) (*catalog.Snapshot, error) {
	snap := e.catalog.Current()
	if snap == nil {
		return nil, model.WrapKind(op, model.ErrUnavailable, catalog.ErrNoSnapshot)
	}
	return snap, nil
}

func (e *Engine) clampK(op string, k int) (int, error) {
	if k < 1 {
		return 0, model.NewKind(op, model.ErrValidation, "k must be >= 1, got %d", k)
	}
	return min(k, e.maxK), nil
}

// Recommend returns up to K drinks for the request.
func (e *Engine) Recommend(ctx context.Context, req Request) (Result, error) {
	const op = "recommend.recs"
	k, err := e.clampK(op, req.K)
	if err != nil {
		return Result{}, err
	}
	snap, err := e.snapshot(op)
	if err != nil {
		return Result{}, err
	}

	mode := ModeSimilarity
	prof, err := e.profiles.ProfileAt(ctx, snap, req.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, model.Wrap(op, ctx.Err())
		}
		if req.Likes.Empty() {
			if errors.Is(err, model.ErrUnavailable) {
				return Result{}, model.Wrap(op, err)
			}
			return Result{}, model.WrapKind(op, model.ErrUnavailable, err)
		}
		e.log.Warn(ctx, "profile unavailable, ranking on request likes only",
			logger.String("user_id", req.UserID), logger.Error(err))
		prof = model.UserProfile{UserID: req.UserID}
		mode = ModeDegraded
	}

	likes := mergeLikes(req.Likes, prof.Likes)
	dislikes := mergeDislikes(req.Dislikes, prof.Dislikes)
	vz := snap.Vectorizer()
	vec := vz.VectorizeUser(taste.UserInput{
		Likes:    likes,
		Dislikes: dislikes,
		Ratings:  profile.Rated(snap, prof.Latest),
	})
	if seeds := e.seedVectors(snap, req.SeedIDs); len(seeds) > 0 {
		taste.AddScaled(vec, taste.Mean(seeds), e.seedWeight)
	}

	if taste.IsZero(vec) && likes.Empty() {
		items, err := e.popular(ctx, snap, k)
		if err != nil {
			return Result{}, err
		}
		metrics.RecordRecommendation(ModePopularity)
		return Result{Items: items, Mode: ModePopularity}, nil
	}

	loved := map[string]struct{}{}
	for id, ev := range prof.Latest {
		if ev.Rating >= vz.PositiveRating() && snap.Has(id) {
			loved[id] = struct{}{}
		}
	}

	start := time.Now()
	neighbors, err := snap.Index().Nearest(ctx, vec, k+len(loved), nil)
	metrics.RecordSimilarityLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return Result{}, model.Wrap(op, err)
	}

	// loved drinks only back-fill when too few others remain
	items := make([]Item, 0, k)
	var backfill []Item
	for _, n := range neighbors {
		it := Item{Drink: n.Drink, Distance: n.Distance, Reasons: e.reasons(n.Drink, likes)}
		if _, ok := loved[n.Drink.ID]; ok {
			backfill = append(backfill, it)
			continue
		}
		if len(items) < k {
			items = append(items, it)
		}
	}
	for _, it := range backfill {
		if len(items) >= k {
			break
		}
		items = append(items, it)
	}

	metrics.RecordRecommendation(mode)
	return Result{Items: items, Mode: mode}, nil
}

// Similar returns the drinks nearest to id, excluding id itself.
func (e *Engine) Similar(ctx context.Context, id string, k int) (model.Drink, []model.Neighbor, error) {
	const op = "recommend.similar"
	k, err := e.clampK(op, k)
	if err != nil {
		return model.Drink{}, nil, err
	}
	snap, err := e.snapshot(op)
	if err != nil {
		return model.Drink{}, nil, err
	}
	src, err := snap.Get(id)
	if err != nil {
		return model.Drink{}, nil, err
	}
	vec, _ := snap.Index().Vector(id)

	start := time.Now()
	out, err := snap.Index().Nearest(ctx, vec, k, map[string]struct{}{id: {}})
	metrics.RecordSimilarityLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return model.Drink{}, nil, model.Wrap(op, err)
	}
	return src, out, nil
}

func (e *Engine) seedVectors(snap *catalog.Snapshot, ids []string) [][]float64 {
	var out [][]float64
	for _, id := range ids {
		if v, ok := snap.Index().Vector(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// popular ranks by positive-rating count, then fills with the rest of the
// catalog in id order.
func (e *Engine) popular(ctx context.Context, snap *catalog.Snapshot, k int) ([]Item, error) {
	items := make([]Item, 0, k)
	seen := make(map[string]struct{}, k)
	if e.popularity != nil {
		err := e.popularity.Each(ctx, func(id string, count int64) bool {
			if count <= 0 {
				return false
			}
			if d, err := snap.Get(id); err == nil {
				items = append(items, Item{Drink: d})
				seen[id] = struct{}{}
			}
			return len(items) < k
		})
		if err != nil {
			return nil, model.Wrap("recommend.popular", err)
		}
	}
	for _, d := range snap.Drinks() {
		if len(items) >= k {
			break
		}
		if _, ok := seen[d.ID]; ok {
			continue
		}
		items = append(items, Item{Drink: d})
	}
	return items, nil
}

// reasons explains an item by the likes it matches: spirit, then tags in
// the order they were liked, then seasons.
func (e *Engine) reasons(d model.Drink, likes model.Likes) []string {
	var out []string
	add := func(r string) bool {
		if len(out) >= e.maxReasons {
			return false
		}
		out = append(out, r)
		return true
	}
	for _, s := range likes.Spirits {
		if d.PrimarySpirit != "" && taste.Normalize(s) == d.PrimarySpirit {
			if !add("matches spirit: " + d.PrimarySpirit) {
				return out
			}
			break
		}
	}
	for _, t := range normalizedUnique(likes.Tags) {
		if slices.Contains(d.Tags, t) && !add("matches tag: "+t) {
			return out
		}
	}
	for _, s := range normalizedUnique(likes.Seasons) {
		if slices.Contains(d.Season, s) && !add("matches season: "+s) {
			return out
		}
	}
	return out
}

func normalizedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = taste.Normalize(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func mergeLikes(req, stored model.Likes) model.Likes {
	return model.Likes{
		Spirits: pick(req.Spirits, stored.Spirits),
		Tags:    pick(req.Tags, stored.Tags),
		Seasons: pick(req.Seasons, stored.Seasons),
	}
}

func mergeDislikes(req, stored model.Dislikes) model.Dislikes {
	return model.Dislikes{
		Tags:    pick(req.Tags, stored.Tags),
		Seasons: pick(req.Seasons, stored.Seasons),
	}
}

func pick(req, stored []string) []string {
	if len(req) > 0 {
		return req
	}
	return stored
}
