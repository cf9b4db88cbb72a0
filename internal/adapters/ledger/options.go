package ledger

import (
	"time"

	"github.com/okian/shaker/pkg/logger"
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// Catalog answers whether a drink id exists in the current catalog.
type Catalog interface {
	Has(id string) bool
}

// WithCatalog validates drink ids on append. Without it every id is accepted.
func WithCatalog(c Catalog) Option {
	return func(l *Ledger) {
		if c != nil {
			l.catalog = c
		}
	}
}

// WithSyncWrites fsyncs every commit (default true).
func WithSyncWrites(sync bool) Option {
	return func(l *Ledger) {
		l.syncWrites = sync
	}
}

// WithInMemory keeps the database in memory; the path is ignored.
func WithInMemory(inMemory bool) Option {
	return func(l *Ledger) {
		l.inMemory = inMemory
	}
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for the ledger and the storage engine.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}
