// Package similarity ranks drinks by cosine distance to a query vector.
package similarity

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/shaker/internal/domain/model"
)

const (
	defaultParallelThreshold = 4096
	maxDistance              = 2.0
)

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithParallelThreshold sets the catalog size above which scans run in chunks.
func WithParallelThreshold(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.parallelThreshold = n
		}
	}
}

// WithParallelism caps the number of concurrent scan chunks.
func WithParallelism(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.parallelism = n
		}
	}
}

// Index is an immutable brute-force nearest-neighbor index.
type Index struct {
	drinks []model.Drink
	vecs   [][]float64
	norms  []float64
	byID   map[string]int

	parallelThreshold int
	parallelism       int
}

// NewIndex indexes drinks with their precomputed vectors; vecs[i] belongs to drinks[i].
func NewIndex(drinks []model.Drink, vecs [][]float64, opts ...Option) *Index {
	ix := &Index{
		drinks:            drinks,
		vecs:              vecs,
		norms:             make([]float64, len(vecs)),
		byID:              make(map[string]int, len(drinks)),
		parallelThreshold: defaultParallelThreshold,
		parallelism:       runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(ix)
	}
	for i := range drinks {
		ix.byID[drinks[i].ID] = i
		ix.norms[i] = Norm(vecs[i])
	}
	return ix
}

// Len is the number of indexed drinks.
func (ix *Index) Len() int { return len(ix.drinks) }

// Vector returns the stored vector of a drink.
func (ix *Index) Vector(id string) ([]float64, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return ix.vecs[i], true
}

// Nearest returns up to k drinks closest to q, ascending by distance then id.
// Drinks whose id is in exclude never appear.
func (ix *Index) Nearest(ctx context.Context, q []float64, k int, exclude map[string]struct{}) ([]model.Neighbor, error) {
	if k <= 0 || len(ix.drinks) == 0 {
		return []model.Neighbor{}, nil
	}
	qn := Norm(q)

	var top []candidate
	if len(ix.drinks) <= ix.parallelThreshold || ix.parallelism < 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top = ix.scan(q, qn, k, exclude, 0, len(ix.drinks))
	} else {
		var err error
		if top, err = ix.scanParallel(ctx, q, qn, k, exclude); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(top, func(a, b candidate) int { return compare(a, b, ix.drinks) })
	out := make([]model.Neighbor, 0, len(top))
	for _, c := range top {
		out = append(out, model.Neighbor{Drink: ix.drinks[c.idx], Distance: c.dist})
	}
	return out, nil
}

func (ix *Index) scanParallel(ctx context.Context, q []float64, qn float64, k int, exclude map[string]struct{}) ([]candidate, error) {
	n := len(ix.drinks)
	chunk := (n + ix.parallelism - 1) / ix.parallelism
	parts := make([][]candidate, (n+chunk-1)/chunk)

	g, gctx := errgroup.WithContext(ctx)
	for p := range parts {
		lo := p * chunk
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[p] = ix.scan(q, qn, k, exclude, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := &maxHeap{drinks: ix.drinks}
	for _, part := range parts {
		for _, c := range part {
			h.offer(c, k)
		}
	}
	return h.items, nil
}

func (ix *Index) scan(q []float64, qn float64, k int, exclude map[string]struct{}, lo, hi int) []candidate {
	h := &maxHeap{drinks: ix.drinks, items: make([]candidate, 0, min(k, hi-lo))}
	for i := lo; i < hi; i++ {
		if _, skip := exclude[ix.drinks[i].ID]; skip {
			continue
		}
		h.offer(candidate{idx: i, dist: distance(q, ix.vecs[i], qn, ix.norms[i])}, k)
	}
	return h.items
}

// Distance is the cosine distance 1 - cos(a, b), clamped to [0, 2].
// A zero vector on either side has similarity 0.
func Distance(a, b []float64) float64 {
	return distance(a, b, Norm(a), Norm(b))
}

func distance(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	d := 1 - dot/(na*nb)
	return math.Min(maxDistance, math.Max(0, d))
}

// Norm is the Euclidean length of v.
func Norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

type candidate struct {
	idx  int
	dist float64
}

func compare(a, b candidate, drinks []model.Drink) int {
	switch {
	case a.dist < b.dist:
		return -1
	case a.dist > b.dist:
		return 1
	}
	return strings.Compare(drinks[a.idx].ID, drinks[b.idx].ID)
}

// maxHeap keeps the k best candidates with the worst one on top.
type maxHeap struct {
	drinks []model.Drink
	items  []candidate
}

func (h *maxHeap) Len() int           { return len(h.items) }
func (h *maxHeap) Less(i, j int) bool { return compare(h.items[i], h.items[j], h.drinks) > 0 }
func (h *maxHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *maxHeap) Push(x any)         { h.items = append(h.items, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

func (h *maxHeap) offer(c candidate, k int) {
	if len(h.items) < k {
		heap.Push(h, c)
		return
	}
	if compare(c, h.items[0], h.drinks) < 0 {
		h.items[0] = c
		heap.Fix(h, 0)
	}
}
