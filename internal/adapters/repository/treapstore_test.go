package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	c, err := store.Adjust(ctx, "11000", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 1 {
		t.Errorf("expected count 1, got %d", c)
	}

	entry, err := store.Rank(ctx, "11000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Count != 1 {
		t.Errorf("unexpected entry %+v", entry)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].DrinkID != "11000" {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestTreapStore_ZeroRemoves(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	_, _ = store.Adjust(ctx, "a", 2)
	c, _ := store.Adjust(ctx, "a", -2)
	if c != 0 {
		t.Errorf("expected 0, got %d", c)
	}
	if store.Count(ctx) != 0 {
		t.Errorf("expected drink to be dropped, count %d", store.Count(ctx))
	}
	if _, err := store.Rank(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Negative balances are kept but never ranked.
	c, _ = store.Adjust(ctx, "b", -1)
	if c != -1 || store.Count(ctx) != 0 {
		t.Errorf("expected unranked balance -1 for b, got %d (ranked %d)", c, store.Count(ctx))
	}
	if _, err := store.Rank(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for negative balance, got %v", err)
	}
}

func TestTreapStore_DeltasCommute(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// A downgrade applied before its upgrade nets to zero.
	_, _ = store.Adjust(ctx, "11002", -1)
	c, _ := store.Adjust(ctx, "11002", 1)
	if c != 0 || store.Count(ctx) != 0 {
		t.Errorf("expected net zero and no ranking, got %d (ranked %d)", c, store.Count(ctx))
	}
	if top, _ := store.TopN(ctx, 5); len(top) != 0 {
		t.Errorf("expected empty ranking, got %+v", top)
	}

	// Reverse order of a +1,+1,-1 sequence on two drinks.
	_, _ = store.Adjust(ctx, "a", -1)
	_, _ = store.Adjust(ctx, "a", 1)
	_, _ = store.Adjust(ctx, "a", 1)
	_, _ = store.Adjust(ctx, "b", 1)
	entry, err := store.Rank(ctx, "a")
	if err != nil || entry.Count != 1 {
		t.Errorf("expected a with count 1, got %+v %v", entry, err)
	}
	if store.Count(ctx) != 2 {
		t.Errorf("expected 2 ranked drinks, got %d", store.Count(ctx))
	}
}

func TestTreapStore_ConcurrentUpgradeDowngrade(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const users = 2000
	deltas := make(chan int64, 2*users)
	for i := 0; i < users; i++ {
		deltas <- 1
		deltas <- -1
	}
	close(deltas)

	// Several appliers drain the same channel, so the -1 of a pair can land
	// before its +1.
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deltas {
				_, _ = store.Adjust(ctx, "11002", d)
			}
		}()
	}
	wg.Wait()

	top, err := store.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("expected empty ranking, got %+v", top)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	_, _ = store.Adjust(ctx, "c", 2)
	_, _ = store.Adjust(ctx, "a", 2)
	_, _ = store.Adjust(ctx, "b", 5)
	_, _ = store.Adjust(ctx, "d", 1)
	_, _ = store.Adjust(ctx, "d", 3)

	var got []string
	err := store.Each(ctx, func(id string, _ int64) bool {
		got = append(got, id)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b", "d", "a", "c"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	entry, _ := store.Rank(ctx, "a")
	if entry.Rank != 3 {
		t.Errorf("expected a at rank 3, got %d", entry.Rank)
	}

	top, _ := store.TopN(ctx, 2)
	if len(top) != 2 || top[0].DrinkID != "b" || top[1].Rank != 2 {
		t.Errorf("unexpected top %+v", top)
	}
}

func TestTreapStore_EachStopsEarly(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	for i := 0; i < 10; i++ {
		_, _ = store.Adjust(ctx, fmt.Sprintf("d%02d", i), int64(i+1))
	}
	seen := 0
	_ = store.Each(ctx, func(string, int64) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Errorf("expected 3 visits, got %d", seen)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Each(cancelled, func(string, int64) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := store.Adjust(ctx, "", 1); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
	c, err := store.Adjust(ctx, "x", 0)
	if err != nil || c != 0 || store.Count(ctx) != 0 {
		t.Errorf("zero delta must be a no-op: %d %v", c, err)
	}

	_, _ = store.Adjust(ctx, "x", 4)
	store.Reset(ctx)
	if store.Count(ctx) != 0 {
		t.Errorf("expected empty store after reset")
	}
}

func TestTreapStore_MatchesSortedModel(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	rng := rand.New(rand.NewSource(7))
	model := map[string]int64{}
	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("%d", 11000+rng.Intn(300))
		delta := int64(rng.Intn(3) - 1)
		c, err := store.Adjust(ctx, id, delta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		model[id] += delta
		if c != model[id] {
			t.Fatalf("count for %s: expected %d, got %d", id, model[id], c)
		}
	}

	type row struct {
		id string
		c  int64
	}
	want := make([]row, 0, len(model))
	for id, c := range model {
		if c > 0 {
			want = append(want, row{id, c})
		}
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].c != want[j].c {
			return want[i].c > want[j].c
		}
		return want[i].id < want[j].id
	})

	top, err := store.TopN(ctx, len(want)+10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(top))
	}
	for i, e := range top {
		if e.DrinkID != want[i].id || e.Count != want[i].c {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], e)
		}
		r, _ := store.Rank(ctx, e.DrinkID)
		if r.Rank != i+1 {
			t.Fatalf("rank of %s: expected %d, got %d", e.DrinkID, i+1, r.Rank)
		}
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = store.Adjust(ctx, fmt.Sprintf("d%d", i%20), 1)
				_, _ = store.TopN(ctx, 5)
			}
		}(w)
	}
	wg.Wait()

	if store.Count(ctx) != 20 {
		t.Errorf("expected 20 drinks, got %d", store.Count(ctx))
	}
	var total int64
	_ = store.Each(ctx, func(_ string, c int64) bool {
		total += c
		return true
	})
	if total != 8*200 {
		t.Errorf("expected total %d, got %d", 8*200, total)
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	store := NewTreapStore(context.Background(), WithMetricsUpdateInterval(time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func BenchmarkTreapStore_Adjust(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 11000+i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Adjust(ctx, ids[i%len(ids)], 1)
	}
}

func BenchmarkTreapStore_TopN(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	for i := 0; i < 10000; i++ {
		_, _ = store.Adjust(ctx, fmt.Sprintf("%d", i), int64(i%97+1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.TopN(ctx, 48)
	}
}
