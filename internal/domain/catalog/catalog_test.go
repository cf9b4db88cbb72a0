package catalog_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func loadFixture(t *testing.T) *catalog.Snapshot {
	t.Helper()
	drinks, err := catalog.LoadFile("testdata/drinks.json")
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	snap, err := catalog.Build(context.Background(), drinks)
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	return snap
}

func names(ds []model.Drink) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestBuild(t *testing.T) {
	Convey("Given raw drinks", t, func() {
		ctx := context.Background()

		Convey("duplicate ids are rejected", func() {
			_, err := catalog.Build(ctx, []model.Drink{{ID: "a"}, {ID: "a"}})
			So(errors.Is(err, catalog.ErrDuplicateID), ShouldBeTrue)
		})

		Convey("empty ids are rejected", func() {
			_, err := catalog.Build(ctx, []model.Drink{{ID: " "}})
			So(errors.Is(err, catalog.ErrEmptyID), ShouldBeTrue)
		})

		Convey("labels are normalized at ingestion", func() {
			snap, err := catalog.Build(ctx, []model.Drink{{
				ID: "x", Name: "X", PrimarySpirit: " Gin ", Tags: []string{"Citrusy", "citrusy", ""},
				Season: []string{"SUMMER"}, TasteProfile: map[string]float64{"Sour": 0.5},
			}})
			So(err, ShouldBeNil)
			d, err := snap.Get("x")
			So(err, ShouldBeNil)
			So(d.PrimarySpirit, ShouldEqual, "gin")
			So(d.Tags, ShouldResemble, []string{"citrusy"})
			So(d.Season, ShouldResemble, []string{"summer"})
			So(d.TasteProfile["sour"], ShouldEqual, 0.5)
		})

		Convey("every drink gets a vector in the index", func() {
			snap := loadFixture(t)
			So(snap.Index().Len(), ShouldEqual, 10)
			v, ok := snap.Index().Vector("11003")
			So(ok, ShouldBeTrue)
			So(len(v), ShouldEqual, snap.Vectorizer().Layout().Dim())
		})
	})
}

func TestSnapshotReads(t *testing.T) {
	Convey("Given the 10-drink fixture", t, func() {
		snap := loadFixture(t)

		Convey("Get returns a drink or NotFound", func() {
			d, err := snap.Get("11007")
			So(err, ShouldBeNil)
			So(d.Name, ShouldEqual, "Espresso Martini")

			_, err = snap.Get("nope")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Facets count labels and skip missing spirits", func() {
			f := snap.Facets()
			So(f.Total, ShouldEqual, 10)
			So(f.Spirits["gin"], ShouldEqual, 4)
			So(f.Spirits, ShouldNotContainKey, "")
			So(f.Tags["citrusy"], ShouldEqual, 5)
			So(f.Tags["minty"], ShouldEqual, 1)
			So(f.Seasons["summer"], ShouldEqual, 5)
		})

		Convey("Facets are copies", func() {
			f := snap.Facets()
			f.Spirits["gin"] = 99
			So(snap.Facets().Spirits["gin"], ShouldEqual, 4)
		})
	})
}

func TestQuery(t *testing.T) {
	Convey("Given the 10-drink fixture", t, func() {
		snap := loadFixture(t)

		Convey("results are ordered by case-insensitive name", func() {
			items, total, err := snap.Query(model.Filters{Spirit: "GIN"}, 1, 24)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 4)
			So(names(items), ShouldResemble, []string{"Gimlet", "gin fizz", "Martini", "Negroni"})
		})

		Convey("filters combine", func() {
			items, total, err := snap.Query(model.Filters{Tag: "citrusy", Season: "Summer"}, 1, 24)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 4)
			So(names(items), ShouldResemble, []string{"Daiquiri", "gin fizz", "Margarita", "Mojito"})
		})

		Convey("an unknown facet value is a validation error", func() {
			for _, f := range []model.Filters{{Spirit: "absinthe"}, {Tag: "smoky"}, {Season: "monsoon"}} {
				items, total, err := snap.Query(f, 1, 24)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, catalog.ErrUnknownFacet), ShouldBeTrue)
				So(total, ShouldEqual, 0)
				So(items, ShouldBeNil)
			}
		})

		Convey("every text token must be a substring of name, tags or ingredients", func() {
			items, _, err := snap.Query(model.Filters{Q: "LIME rum"}, 1, 24)
			So(err, ShouldBeNil)
			So(names(items), ShouldResemble, []string{"Daiquiri", "Mojito"})

			items, _, err = snap.Query(model.Filters{Q: "mart"}, 1, 24)
			So(err, ShouldBeNil)
			So(names(items), ShouldResemble, []string{"Espresso Martini", "Martini"})

			items, _, err = snap.Query(model.Filters{Q: "minty"}, 1, 24)
			So(err, ShouldBeNil)
			So(names(items), ShouldResemble, []string{"Mojito"})
		})

		Convey("pagination is 1-indexed", func() {
			first, total, err := snap.Query(model.Filters{}, 1, 3)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 10)
			So(names(first), ShouldResemble, []string{"Daiquiri", "Espresso Martini", "Gimlet"})

			last, total, err := snap.Query(model.Filters{}, 4, 3)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 10)
			So(names(last), ShouldResemble, []string{"Shirley Temple"})
		})

		Convey("a page past the end is empty with the right total", func() {
			items, total, err := snap.Query(model.Filters{}, 999, 24)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 10)
			So(items, ShouldNotBeNil)
			So(items, ShouldBeEmpty)
		})

		Convey("invalid paging is a validation error", func() {
			_, _, err := snap.Query(model.Filters{}, 0, 24)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, _, err = snap.Query(model.Filters{}, 1, 0)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestLoader(t *testing.T) {
	Convey("Given catalog files", t, func() {
		Convey("YAML files load through the same model", func() {
			drinks, err := catalog.LoadFile("testdata/drinks.yaml")
			So(err, ShouldBeNil)
			So(len(drinks), ShouldEqual, 2)
			So(drinks[0].PrimarySpirit, ShouldEqual, "Tequila")
			So(drinks[0].TasteProfile["sour"], ShouldEqual, 0.5)
		})

		Convey("JSON objects keyed by id are accepted", func() {
			drinks, err := catalog.Decode(strings.NewReader(`{"b": {"name": "B"}, "a": {"id": "a", "name": "A"}}`), catalog.FormatJSON)
			So(err, ShouldBeNil)
			So(len(drinks), ShouldEqual, 2)
			So(drinks[0].ID, ShouldEqual, "a")
			So(drinks[1].ID, ShouldEqual, "b")
		})

		Convey("null fields decode to zero values", func() {
			drinks, err := catalog.Decode(strings.NewReader(`[{"id": "1", "name": "N", "glass": null, "image_url": null, "abv_estimate": null}]`), catalog.FormatJSON)
			So(err, ShouldBeNil)
			So(drinks[0].Glass, ShouldEqual, "")
		})

		Convey("unknown extensions are rejected", func() {
			_, err := catalog.LoadFile("drinks.csv")
			So(errors.Is(err, catalog.ErrFormat), ShouldBeTrue)
		})

		Convey("malformed JSON is an error", func() {
			_, err := catalog.Decode(strings.NewReader(`[{"id": 1`), catalog.FormatJSON)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given a store", t, func() {
		first := loadFixture(t)
		st := catalog.NewStore(first)
		So(st.Current(), ShouldEqual, first)
		So(st.Version(), ShouldEqual, uint64(1))

		Convey("Swap publishes atomically while readers keep their snapshot", func() {
			held := st.Current()
			next, err := catalog.Build(context.Background(), []model.Drink{{ID: "only", Name: "Only"}})
			So(err, ShouldBeNil)

			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s := st.Current()
					_ = s.Len()
				}()
			}
			prev := st.Swap(next)
			wg.Wait()

			So(prev, ShouldEqual, first)
			So(held.Len(), ShouldEqual, 10)
			So(st.Current().Len(), ShouldEqual, 1)
			So(st.Version(), ShouldEqual, uint64(2))
		})

		Convey("an empty store has no snapshot", func() {
			So(catalog.NewStore(nil).Current(), ShouldBeNil)
		})
	})
}
