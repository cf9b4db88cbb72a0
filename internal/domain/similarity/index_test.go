package similarity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func buildIndex(n int, opts ...similarity.Option) *similarity.Index {
	drinks := make([]model.Drink, n)
	vecs := make([][]float64, n)
	for i := range n {
		drinks[i] = model.Drink{ID: fmt.Sprintf("d%03d", i)}
		vecs[i] = []float64{float64(i%7) + 1, float64(i%3) + 1, float64(i % 5)}
	}
	return similarity.NewIndex(drinks, vecs, opts...)
}

func ids(ns []model.Neighbor) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Drink.ID
	}
	return out
}

func TestDistance(t *testing.T) {
	Convey("Given cosine distance", t, func() {
		v := []float64{1, 2, 3}

		Convey("a vector and its positive multiple are at distance 0", func() {
			So(similarity.Distance(v, []float64{2, 4, 6}), ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("opposite vectors are at distance 2", func() {
			So(similarity.Distance(v, []float64{-1, -2, -3}), ShouldAlmostEqual, 2, 1e-12)
		})

		Convey("orthogonal vectors are at distance 1", func() {
			So(similarity.Distance([]float64{1, 0}, []float64{0, 1}), ShouldEqual, 1)
		})

		Convey("a zero vector is at distance 1 from anything", func() {
			So(similarity.Distance([]float64{0, 0, 0}, v), ShouldEqual, 1)
		})
	})
}

func TestNearest(t *testing.T) {
	Convey("Given an index of 20 drinks", t, func() {
		ctx := context.Background()
		ix := buildIndex(20)
		q, _ := ix.Vector("d003")

		Convey("the query drink is its own nearest neighbor", func() {
			res, err := ix.Nearest(ctx, q, 3, nil)
			So(err, ShouldBeNil)
			So(res[0].Drink.ID, ShouldEqual, "d003")
			So(res[0].Distance, ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("excluded ids never appear and the length is min(k, n - excluded)", func() {
			exclude := map[string]struct{}{"d003": {}, "d004": {}}
			res, err := ix.Nearest(ctx, q, 5, exclude)
			So(err, ShouldBeNil)
			So(len(res), ShouldEqual, 5)
			So(ids(res), ShouldNotContain, "d003")
			So(ids(res), ShouldNotContain, "d004")

			all, err := ix.Nearest(ctx, q, 100, exclude)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 18)
		})

		Convey("results are ascending by distance then id", func() {
			res, err := ix.Nearest(ctx, q, 20, nil)
			So(err, ShouldBeNil)
			for i := 1; i < len(res); i++ {
				prev, cur := res[i-1], res[i]
				So(prev.Distance <= cur.Distance, ShouldBeTrue)
				if prev.Distance == cur.Distance {
					So(prev.Drink.ID < cur.Drink.ID, ShouldBeTrue)
				}
			}
		})

		Convey("k <= 0 yields an empty result", func() {
			res, err := ix.Nearest(ctx, q, 0, nil)
			So(err, ShouldBeNil)
			So(res, ShouldBeEmpty)
		})

		Convey("unknown ids have no vector", func() {
			_, ok := ix.Vector("nope")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNearestParallel(t *testing.T) {
	Convey("Given the same catalog scanned sequentially and in chunks", t, func() {
		ctx := context.Background()
		seq := buildIndex(500)
		par := buildIndex(500, similarity.WithParallelThreshold(10), similarity.WithParallelism(4))
		q := []float64{3, 1, 2}
		exclude := map[string]struct{}{"d010": {}}

		a, err := seq.Nearest(ctx, q, 25, exclude)
		So(err, ShouldBeNil)
		b, err := par.Nearest(ctx, q, 25, exclude)
		So(err, ShouldBeNil)

		Convey("both return identical rankings", func() {
			So(ids(b), ShouldResemble, ids(a))
		})

		Convey("a cancelled context aborts the scan", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := par.Nearest(cctx, q, 5, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func BenchmarkNearest(b *testing.B) {
	ix := buildIndex(10_000)
	q := []float64{3, 1, 2}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.Nearest(ctx, q, 48, nil); err != nil {
			b.Fatal(err)
		}
	}
}
