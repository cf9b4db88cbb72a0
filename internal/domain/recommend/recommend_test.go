package recommend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/profile"
	"github.com/okian/shaker/internal/domain/recommend"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedCatalog struct{ snap *catalog.Snapshot }

func (c fixedCatalog) Current() *catalog.Snapshot { return c.snap }

type fakeProfiles struct {
	events []model.RatingEvent
	prefs  model.Preferences
	err    error
}

func (f *fakeProfiles) ProfileAt(_ context.Context, snap *catalog.Snapshot, userID string) (model.UserProfile, error) {
	if f.err != nil {
		return model.UserProfile{}, f.err
	}
	agg := profile.New(nil, nil)
	return agg.Build(snap, userID, f.events, f.prefs), nil
}

type fakePopularity []struct {
	id    string
	count int64
}

func (p fakePopularity) Each(_ context.Context, fn func(string, int64) bool) error {
	for _, e := range p {
		if !fn(e.id, e.count) {
			return nil
		}
	}
	return nil
}

func fixture(t *testing.T) *catalog.Snapshot {
	t.Helper()
	drinks := []model.Drink{
		{ID: "d01", Name: "Gimlet", PrimarySpirit: "gin", Tags: []string{"citrusy"}, Season: []string{"spring"}, TasteProfile: map[string]float64{"sour": 0.6}},
		{ID: "d02", Name: "Gin Fizz", PrimarySpirit: "gin", Tags: []string{"citrusy", "fizzy"}, Season: []string{"summer"}, TasteProfile: map[string]float64{"sour": 0.5}},
		{ID: "d03", Name: "Negroni", PrimarySpirit: "gin", Tags: []string{"bitter", "boozy"}, Season: []string{"fall"}, TasteProfile: map[string]float64{"bitter": 0.8}},
		{ID: "d04", Name: "Martini", PrimarySpirit: "gin", Tags: []string{"boozy"}, Season: []string{"winter"}, TasteProfile: map[string]float64{"boozy": 1}},
		{ID: "d05", Name: "Tom Collins", PrimarySpirit: "gin", Tags: []string{"citrusy", "fizzy"}, Season: []string{"summer"}, TasteProfile: map[string]float64{"sour": 0.5, "sweet": 0.3}},
		{ID: "d06", Name: "Daiquiri", PrimarySpirit: "rum", Tags: []string{"citrusy"}, Season: []string{"summer"}, TasteProfile: map[string]float64{"sour": 0.7}},
		{ID: "d07", Name: "Mojito", PrimarySpirit: "rum", Tags: []string{"minty"}, Season: []string{"summer"}},
		{ID: "d08", Name: "Old Fashioned", PrimarySpirit: "bourbon", Tags: []string{"boozy"}, Season: []string{"winter"}, TasteProfile: map[string]float64{"boozy": 0.9}},
		{ID: "d09", Name: "Margarita", PrimarySpirit: "tequila", Tags: []string{"citrusy", "salty"}, Season: []string{"summer"}},
		{ID: "d10", Name: "Espresso Martini", PrimarySpirit: "vodka", Tags: []string{"coffee"}, Season: []string{"winter"}},
	}
	snap, err := catalog.Build(context.Background(), drinks, catalog.WithTasteAxes([]string{"sweet", "sour", "bitter", "boozy"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return snap
}

func itemIDs(items []recommend.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Drink.ID
	}
	return out
}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func rated(seq uint64, id string, r int) model.RatingEvent {
	return model.RatingEvent{UserID: "u1", DrinkID: id, Rating: r, Seq: seq, Timestamp: t0.Add(time.Duration(seq) * time.Minute)}
}

func TestRecommend(t *testing.T) {
	Convey("Given an engine over a 10-drink catalog", t, func() {
		ctx := context.Background()
		snap := fixture(t)
		profiles := &fakeProfiles{}
		pop := fakePopularity{{"d07", 3}, {"d03", 2}, {"gone", 2}, {"d01", 1}}
		eng := recommend.New(fixedCatalog{snap}, profiles, pop)

		Convey("gin likes with k=5 return gin drinks with reasons, closest first", func() {
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", Likes: model.Likes{Spirits: []string{"gin"}}, K: 5})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModeSimilarity)
			So(len(res.Items), ShouldEqual, 5)
			for i, it := range res.Items {
				So(it.Drink.PrimarySpirit, ShouldEqual, "gin")
				So(it.Reasons, ShouldContain, "matches spirit: gin")
				if i > 0 {
					So(res.Items[i-1].Distance, ShouldBeLessThanOrEqualTo, it.Distance)
				}
			}
		})

		Convey("reasons follow spirit, tag, season order and stop at three", func() {
			res, err := eng.Recommend(ctx, recommend.Request{
				Likes: model.Likes{Spirits: []string{"gin"}, Tags: []string{"fizzy", "citrusy"}, Seasons: []string{"summer"}},
				K:     1,
			})
			So(err, ShouldBeNil)
			So(res.Items[0].Reasons, ShouldResemble, []string{"matches spirit: gin", "matches tag: fizzy", "matches tag: citrusy"})
		})

		Convey("cold start falls back to popularity then id order", func() {
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "new", K: 5})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModePopularity)
			So(itemIDs(res.Items), ShouldResemble, []string{"d07", "d03", "d01", "d02", "d04"})
			So(res.Items[0].Reasons, ShouldBeEmpty)
		})

		Convey("only middling ratings is still a cold start", func() {
			profiles.events = []model.RatingEvent{rated(1, "d01", 3)}
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", K: 2})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModePopularity)
		})

		Convey("loved drinks are excluded while enough others remain", func() {
			profiles.events = []model.RatingEvent{rated(1, "d01", 5), rated(2, "d02", 4)}
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", K: 3})
			So(err, ShouldBeNil)
			So(itemIDs(res.Items), ShouldNotContain, "d01")
			So(itemIDs(res.Items), ShouldNotContain, "d02")
			So(len(res.Items), ShouldEqual, 3)

			Convey("and back-fill when too few remain", func() {
				res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", K: 10})
				So(err, ShouldBeNil)
				ids := itemIDs(res.Items)
				So(len(ids), ShouldEqual, 10)
				So(ids[8:], ShouldContain, "d01")
				So(ids[8:], ShouldContain, "d02")
			})
		})

		Convey("stored preferences apply unless the request overrides the field", func() {
			profiles.prefs = model.Preferences{UserID: "u1", Likes: model.Likes{Spirits: []string{"rum"}}}
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", K: 2})
			So(err, ShouldBeNil)
			So(res.Items[0].Drink.PrimarySpirit, ShouldEqual, "rum")

			res, err = eng.Recommend(ctx, recommend.Request{UserID: "u1", Likes: model.Likes{Spirits: []string{"tequila"}}, K: 1})
			So(err, ShouldBeNil)
			So(res.Items[0].Drink.ID, ShouldEqual, "d09")
		})

		Convey("seed drinks pull the ranking toward them", func() {
			res, err := eng.Recommend(ctx, recommend.Request{SeedIDs: []string{"d08", "unknown"}, K: 1})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModeSimilarity)
			So(res.Items[0].Drink.ID, ShouldEqual, "d08")
		})

		Convey("a ledger failure with likes degrades to likes only", func() {
			profiles.err = model.WrapKind("ledger.events", model.ErrUnavailable, errors.New("io"))
			res, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", Likes: model.Likes{Spirits: []string{"gin"}}, K: 3})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModeDegraded)
			So(len(res.Items), ShouldEqual, 3)
		})

		Convey("a ledger failure without likes is unavailable", func() {
			profiles.err = errors.New("boom")
			_, err := eng.Recommend(ctx, recommend.Request{UserID: "u1", K: 3})
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		})

		Convey("k must be positive and is capped", func() {
			_, err := eng.Recommend(ctx, recommend.Request{K: 0})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			capped := recommend.New(fixedCatalog{snap}, profiles, pop, recommend.WithMaxK(4))
			res, err := capped.Recommend(ctx, recommend.Request{K: 50})
			So(err, ShouldBeNil)
			So(len(res.Items), ShouldEqual, 4)
		})
	})
}

func TestSimilar(t *testing.T) {
	Convey("Given an engine", t, func() {
		ctx := context.Background()
		eng := recommend.New(fixedCatalog{fixture(t)}, &fakeProfiles{}, nil)

		Convey("the source drink is never in its own neighbors", func() {
			src, items, err := eng.Similar(ctx, "d02", 20)
			So(err, ShouldBeNil)
			So(src.Name, ShouldEqual, "Gin Fizz")
			So(len(items), ShouldEqual, 9)
			So(items[0].Drink.ID, ShouldEqual, "d05")
			for _, n := range items {
				So(n.Drink.ID, ShouldNotEqual, "d02")
			}
		})

		Convey("unknown ids are not found", func() {
			_, _, err := eng.Similar(ctx, "nope", 5)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("k below one is invalid", func() {
			_, _, err := eng.Similar(ctx, "d01", 0)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestNoSnapshot(t *testing.T) {
	Convey("An engine without a catalog is unavailable", t, func() {
		eng := recommend.New(fixedCatalog{}, &fakeProfiles{}, nil)
		_, err := eng.Recommend(context.Background(), recommend.Request{K: 1})
		So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		_, _, err = eng.Similar(context.Background(), "x", 1)
		So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		So(fmt.Sprint(err), ShouldContainSubstring, "no catalog snapshot")
	})
}
