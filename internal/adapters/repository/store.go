// Package repository keeps the in-memory popularity projection of the
// rating ledger.
package repository

import "context"

// Entry is one row of the popularity ranking.
type Entry struct {
	Rank    int
	DrinkID string
	Count   int64
}

// Store provides read/write access to popularity counts.
type Store interface {
	// Adjust adds delta to the drink's balance and returns the new balance.
	// Deltas commute: the balance may go negative when a decrement arrives
	// before its increment. Only drinks with a positive balance are ranked.
	Adjust(ctx context.Context, drinkID string, delta int64) (int64, error)

	// Each calls fn for every tracked drink in ranking order until fn
	// returns false.
	Each(ctx context.Context, fn func(drinkID string, count int64) bool) error

	// Rank returns the current rank and count of one drink.
	// Returns ErrNotFound if the drink is not tracked.
	Rank(ctx context.Context, drinkID string) (Entry, error)

	// TopN returns the first n entries, count desc then id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked drinks.
	Count(ctx context.Context) int

	// Reset drops every count.
	Reset(ctx context.Context)
}
