package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	service "github.com/okian/shaker/internal/app"
	"github.com/okian/shaker/internal/config"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/recommend"
	"github.com/okian/shaker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const catalogJSON = `[
  {"id": "11000", "name": "Mojito", "primary_spirit": "rum", "tags": ["minty", "citrusy"], "season": ["summer"], "ingredients": ["rum", "lime", "mint"], "taste_profile": {"sweet": 0.4, "sour": 0.5}},
  {"id": "11002", "name": "Gin Fizz", "primary_spirit": "gin", "tags": ["citrusy", "fizzy"], "season": ["summer"], "ingredients": ["gin", "lemon", "soda"], "taste_profile": {"sour": 0.6}},
  {"id": "11003", "name": "Negroni", "primary_spirit": "gin", "tags": ["bitter", "boozy"], "season": ["fall"], "ingredients": ["gin", "campari", "vermouth"], "taste_profile": {"bitter": 0.8}},
  {"id": "11005", "name": "Martini", "primary_spirit": "gin", "tags": ["boozy"], "season": ["winter"], "ingredients": ["gin", "vermouth"], "taste_profile": {"boozy": 0.9}}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "drinks.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := config.New(context.Background())
	cfg.DataDir = filepath.Join(dir, "ledger")
	cfg.CatalogPath = path
	cfg.SyncWrites = false
	cfg.WorkerCount = 2
	cfg.EventQueueSize = 16
	return cfg
}

// popularCount waits for the async popularity projection to settle on want.
func popularCount(svc *service.Service, drinkID string, want int64) int64 {
	deadline := time.Now().Add(2 * time.Second)
	for {
		var got int64
		entries, _ := svc.TopN(context.Background(), 100)
		for _, e := range entries {
			if e.DrinkID == drinkID {
				got = e.Count
			}
		}
		if got == want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		cfg := testConfig(t)
		svc := service.New(cfg)

		Convey("Stats report it stopped before Start", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Size(), ShouldEqual, int64(0))
		})

		Convey("When started", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then it is marked started with the catalog loaded", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["catalogSize"], ShouldEqual, 4)
				So(stats["ratingEvents"], ShouldEqual, int64(0))
			})

			Convey("And a second Start is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When the catalog file is missing, Start fails as unavailable", func() {
			cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.json")
			err := svc.Start(context.Background())
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_Ratings(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("A loved rating raises popularity and a downgrade removes it", func() {
			ev, err := svc.SubmitRating(ctx, model.RatingEvent{UserID: "amy", DrinkID: "11002", Rating: 5, Tried: true})
			So(err, ShouldBeNil)
			So(ev.ID, ShouldNotBeEmpty)
			So(ev.Seq, ShouldBeGreaterThan, uint64(0))
			So(popularCount(svc, "11002", 1), ShouldEqual, int64(1))

			_, err = svc.SubmitRating(ctx, model.RatingEvent{UserID: "amy", DrinkID: "11002", Rating: 2})
			So(err, ShouldBeNil)
			So(popularCount(svc, "11002", 0), ShouldEqual, int64(0))
		})

		Convey("Invalid ratings leave no trace", func() {
			for _, ev := range []model.RatingEvent{
				{UserID: "amy", DrinkID: "11002", Rating: 0},
				{UserID: "amy", DrinkID: "11002", Rating: 6},
				{UserID: "amy", DrinkID: "nope", Rating: 4},
			} {
				_, err := svc.SubmitRating(ctx, ev)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			}
			So(svc.GetStats()["ratingEvents"], ShouldEqual, int64(0))
		})

		Convey("Latest wins in the profile", func() {
			_, err := svc.SubmitRating(ctx, model.RatingEvent{UserID: "bo", DrinkID: "11003", Rating: 3})
			So(err, ShouldBeNil)
			_, err = svc.SubmitRating(ctx, model.RatingEvent{UserID: "bo", DrinkID: "11003", Rating: 5})
			So(err, ShouldBeNil)

			p, err := svc.Profile(ctx, "bo")
			So(err, ShouldBeNil)
			So(p.RatingsCount, ShouldEqual, 1)
			So(p.Latest["11003"].Rating, ShouldEqual, 5)
			So(p.Summary.PrimarySpirit, ShouldEqual, "gin")
		})

		Convey("Popularity survives a restart", func() {
			_, err := svc.SubmitRating(ctx, model.RatingEvent{UserID: "amy", DrinkID: "11000", Rating: 4})
			So(err, ShouldBeNil)
			_, err = svc.SubmitRating(ctx, model.RatingEvent{UserID: "bo", DrinkID: "11000", Rating: 5})
			So(err, ShouldBeNil)
			svc.Stop()

			again := service.New(cfg)
			So(again.Start(ctx), ShouldBeNil)
			defer again.Stop()

			top, err := again.TopN(ctx, 1)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 1)
			So(top[0].DrinkID, ShouldEqual, "11000")
			So(top[0].Count, ShouldEqual, int64(2))

			entry, err := again.Rank(ctx, "11000")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 1)
		})

		Convey("Idempotency keys are remembered until unrecorded", func() {
			So(svc.SeenAndRecord(ctx, "k"), ShouldBeFalse)
			So(svc.SeenAndRecord(ctx, "k"), ShouldBeTrue)
			So(svc.Size(), ShouldEqual, int64(1))
			svc.Unrecord(ctx, "k")
			So(svc.SeenAndRecord(ctx, "k"), ShouldBeFalse)
		})
	})
}

func TestService_PreferencesAndRecs(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig(t))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("A new user gets the popularity fallback", func() {
			res, err := svc.Recommend(ctx, recommend.Request{UserID: "new", K: 10})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModePopularity)
			So(res.Items, ShouldHaveLength, 4)
		})

		Convey("Saved preferences are normalized and steer recommendations", func() {
			saved, err := svc.SavePreferences(ctx, model.Preferences{
				UserID: "cy",
				Likes:  model.Likes{Spirits: []string{"Gin", " gin ", ""}},
			})
			So(err, ShouldBeNil)
			So(saved.Likes.Spirits, ShouldResemble, []string{"gin"})

			p, err := svc.Profile(ctx, "cy")
			So(err, ShouldBeNil)
			So(p.HasTaste, ShouldBeTrue)

			res, err := svc.Recommend(ctx, recommend.Request{UserID: "cy", K: 3})
			So(err, ShouldBeNil)
			So(res.Mode, ShouldEqual, recommend.ModeSimilarity)
			So(res.Items, ShouldHaveLength, 3)
			for _, it := range res.Items {
				So(it.Drink.PrimarySpirit, ShouldEqual, "gin")
			}
		})

		Convey("Similar excludes the source drink", func() {
			src, near, err := svc.Similar(ctx, "11003", 2)
			So(err, ShouldBeNil)
			So(src.Name, ShouldEqual, "Negroni")
			So(near, ShouldHaveLength, 2)
			for _, n := range near {
				So(n.Drink.ID, ShouldNotEqual, "11003")
			}
		})

		Convey("Browse, search and facets read the catalog", func() {
			page, err := svc.Browse(ctx, model.Filters{Spirit: "gin"}, 1, 10)
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 3)

			page, err = svc.Search(ctx, "campari", model.Filters{}, 1, 10)
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 1)

			f, err := svc.Facets(ctx)
			So(err, ShouldBeNil)
			So(f.Spirits["gin"], ShouldEqual, 3)

			_, err = svc.Get(ctx, "nope")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_ReloadCatalog(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Reloading a smaller file swaps the snapshot", func() {
			small := `[{"id": "11002", "name": "Gin Fizz", "primary_spirit": "gin"}]`
			So(os.WriteFile(cfg.CatalogPath, []byte(small), 0o600), ShouldBeNil)

			n, err := svc.ReloadCatalog(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			_, err = svc.Get(ctx, "11003")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = svc.SubmitRating(ctx, model.RatingEvent{UserID: "amy", DrinkID: "11003", Rating: 4})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("A broken file keeps the current snapshot", func() {
			So(os.WriteFile(cfg.CatalogPath, []byte(`[{"id": ""}]`), 0o600), ShouldBeNil)

			_, err := svc.ReloadCatalog(ctx)
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)

			f, err := svc.Facets(ctx)
			So(err, ShouldBeNil)
			So(f.Total, ShouldEqual, 4)
		})
	})
}

func TestService_PopularityUnderConcurrentWorkers(t *testing.T) {
	Convey("Given many workers and a queue small enough to overflow", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.WorkerCount = 8
		cfg.EventQueueSize = 4
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Users who love then downgrade a drink leave no popularity behind", func() {
			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					user := fmt.Sprintf("user-%03d", i)
					_, _ = svc.SubmitRating(ctx, model.RatingEvent{UserID: user, DrinkID: "11002", Rating: 5})
					_, _ = svc.SubmitRating(ctx, model.RatingEvent{UserID: user, DrinkID: "11002", Rating: 2})
				}(i)
			}
			wg.Wait()

			deadline := time.Now().Add(2 * time.Second)
			for svc.GetStats()["queueLength"] != 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(popularCount(svc, "11002", 0), ShouldEqual, int64(0))

			top, err := svc.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)
		})
	})
}
