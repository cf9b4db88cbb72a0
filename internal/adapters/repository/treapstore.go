package repository

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/shaker/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: count DESC, then drinkID ASC. "less" means ranks earlier, so an
// in-order traversal yields the ranking from most to least popular. Node
// priorities come from a hash of the id, which keeps the tree balanced in
// expectation regardless of the insertion order.

type node struct {
	id    string
	count int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aCount, aID) ranks before (bCount, bID).
func less(aCount int64, aID string, bCount int64, bID string) bool {
	if aCount != bCount {
		return aCount > bCount
	}
	return aID < bID
}

func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, count int64) *node {
	if n == nil {
		return &node{id: id, count: count, prio: priority(id), size: 1}
	}
	if less(count, id, n.count, n.id) {
		n.left = insert(n.left, id, count)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, count)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, count int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case count == n.count && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, count)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, count)
		}
	case less(count, id, n.count, n.id):
		n.left = deleteNode(n.left, id, count)
	default:
		n.right = deleteNode(n.right, id, count)
	}
	fix(n)
	return n
}

// walk visits nodes in rank order until fn returns false.
func walk(n *node, fn func(*node) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	return walk(n.right, fn)
}

// rankOf returns the 1-based position of (id, count) using subtree sizes.
func rankOf(n *node, id string, count int64) int {
	rank := 0
	for n != nil {
		switch {
		case n.id == id && n.count == count:
			return rank + nsize(n.left) + 1
		case less(count, id, n.count, n.id):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// TreapStore is a Store safe for concurrent use.
type TreapStore struct {
	mu                    sync.RWMutex
	root                  *node
	byID                  map[string]int64
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store and starts its metrics updater.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]int64),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Adjust implements Store.Adjust in O(log n) expected time.
func (s *TreapStore) Adjust(ctx context.Context, drinkID string, delta int64) (int64, error) {
	if drinkID == "" {
		return 0, ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if delta == 0 {
		s.mu.RLock()
		c := s.byID[drinkID]
		s.mu.RUnlock()
		return c, nil
	}

	// byID holds the signed balance so deltas commute; only positive
	// balances are ranked.
	s.mu.Lock()
	old := s.byID[drinkID]
	if old > 0 {
		s.root = deleteNode(s.root, drinkID, old)
	}
	next := old + delta
	if next == 0 {
		delete(s.byID, drinkID)
	} else {
		s.byID[drinkID] = next
	}
	if next > 0 {
		s.root = insert(s.root, drinkID, next)
	}
	s.mu.Unlock()

	metrics.RecordPopularityUpdate()
	return next, nil
}

// Each implements Store.Each. The read lock is held while fn runs, so fn
// must not call back into the store.
func (s *TreapStore) Each(ctx context.Context, fn func(drinkID string, count int64) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var err error
	walk(s.root, func(n *node) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		return fn(n.id, n.count)
	})
	return err
}

// Rank implements Store.Rank in O(log n) expected time.
func (s *TreapStore) Rank(ctx context.Context, drinkID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.byID[drinkID]
	if c <= 0 {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: rankOf(s.root, drinkID, c), DrinkID: drinkID, Count: c}, nil
}

// TopN implements Store.TopN. Ranks are positional.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	out := make([]Entry, 0, min(n, s.Count(ctx)))
	err := s.Each(ctx, func(id string, c int64) bool {
		out = append(out, Entry{Rank: len(out) + 1, DrinkID: id, Count: c})
		return len(out) < n
	})
	return out, err
}

// Count implements Store.Count.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nsize(s.root)
}

// Reset implements Store.Reset.
func (s *TreapStore) Reset(_ context.Context) {
	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]int64)
	s.mu.Unlock()
	metrics.UpdatePopularDrinks(0)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdatePopularDrinks(s.Count(ctx))
			}
		}
	}()
}
