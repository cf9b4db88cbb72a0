// Package ledger is the durable, append-only store of rating events and
// onboarding preferences, backed by BadgerDB.
package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/pkg/logger"
	"github.com/okian/shaker/pkg/metrics"
)

const (
	minRating     = 1
	maxRating     = 5
	sequenceLease = 256
)

// AppendResult is the stored event and the rating it superseded, if any.
type AppendResult struct {
	Event    model.RatingEvent
	Previous *int
}

// LatestEntry is the winning rating of one (user, drink) pair.
type LatestEntry struct {
	UserID    string    `json:"-"`
	DrinkID   string    `json:"-"`
	Rating    int       `json:"rating"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger appends rating events durably and serves per-user snapshot reads.
type Ledger struct {
	db  *badger.DB
	seq *badger.Sequence

	mu     sync.Mutex // serializes appends
	lastTS time.Time

	catalog    Catalog
	syncWrites bool
	inMemory   bool
	now        func() time.Time
	log        logger.Logger
}

// Open opens (or creates) the ledger at path.
func Open(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		syncWrites: true,
		now:        time.Now,
		log:        logger.New(),
	}
	for _, opt := range opts {
		opt(l)
	}

	bopts := badger.DefaultOptions(path)
	if l.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = l.syncWrites
	bopts.Logger = badgerLogger{log: l.log.Named("badger")}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, model.WrapKind("ledger.open", model.ErrUnavailable, err)
	}
	l.db = db

	if l.seq, err = db.GetSequence(keySequence, sequenceLease); err != nil {
		_ = db.Close()
		return nil, model.WrapKind("ledger.open", model.ErrUnavailable, err)
	}
	if err := l.loadLastTS(); err != nil {
		_ = l.seq.Release()
		_ = db.Close()
		return nil, err
	}

	l.log.Info(context.Background(), "ledger opened",
		logger.String("path", path),
		logger.Bool("sync_writes", l.syncWrites),
		logger.Bool("in_memory", l.inMemory),
	)
	return l, nil
}

func (l *Ledger) loadLastTS() error {
	return l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLastTS)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return model.WrapKind("ledger.open", model.ErrUnavailable, err)
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return model.NewKind("ledger.open", model.ErrUnavailable, "corrupt %s", keyLastTS)
			}
			l.lastTS = time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC() //nolint:gosec // written by us
			return nil
		})
	})
}

// Close releases the sequence lease and closes the database.
func (l *Ledger) Close() error {
	var errs []error
	if l.seq != nil {
		errs = append(errs, l.seq.Release())
	}
	errs = append(errs, l.db.Close())
	return errors.Join(errs...)
}

// Append validates and durably stores one rating event. Server-side fields
// (id, timestamp, seq) are assigned here; caller values are ignored.
// A rejected event leaves no trace in the ledger.
func (l *Ledger) Append(ctx context.Context, ev model.RatingEvent) (AppendResult, error) {
	const op = "ledger.append"
	if err := ctx.Err(); err != nil {
		return AppendResult{}, model.Wrap(op, err)
	}
	if err := l.validate(ev); err != nil {
		metrics.RecordRatingRejected("validation")
		return AppendResult{}, model.WrapKind(op, model.ErrValidation, err)
	}

	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.seq.Next()
	if err != nil {
		metrics.RecordLedgerError()
		return AppendResult{}, model.WrapKind(op, model.ErrUnavailable, err)
	}
	ts := l.now().UTC()
	if !ts.After(l.lastTS) {
		ts = l.lastTS.Add(time.Nanosecond)
	}

	ev.ID = uuid.NewString()
	ev.Seq = seq + 1
	ev.Timestamp = ts

	var previous *int
	err = l.db.Update(func(txn *badger.Txn) error {
		lk := latestKey(ev.UserID, ev.DrinkID)
		item, err := txn.Get(lk)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var prev LatestEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) }); err != nil {
				return err
			}
			previous = &prev.Rating
		}

		evBytes, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		latest, err := json.Marshal(LatestEntry{Rating: ev.Rating, Seq: ev.Seq, Timestamp: ev.Timestamp})
		if err != nil {
			return fmt.Errorf("marshal latest: %w", err)
		}
		var tsBytes [8]byte
		binary.BigEndian.PutUint64(tsBytes[:], uint64(ts.UnixNano())) //nolint:gosec // post-1970 clock

		if err := txn.Set(eventKey(ev.UserID, ev.Seq), evBytes); err != nil {
			return err
		}
		if err := txn.Set(lk, latest); err != nil {
			return err
		}
		return txn.Set(keyLastTS, tsBytes[:])
	})
	if err != nil {
		metrics.RecordLedgerError()
		l.log.Error(ctx, "ledger append failed", logger.String("user_id", ev.UserID), logger.Error(err))
		return AppendResult{}, model.WrapKind(op, model.ErrUnavailable, err)
	}
	l.lastTS = ts

	metrics.RecordRatingAppended(float64(time.Since(start).Microseconds()) / 1000)
	return AppendResult{Event: ev, Previous: previous}, nil
}

func (l *Ledger) validate(ev model.RatingEvent) error {
	if err := ValidateUserID(ev.UserID); err != nil {
		return err
	}
	if ev.Rating < minRating || ev.Rating > maxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, ev.Rating)
	}
	if strings.TrimSpace(ev.DrinkID) == "" {
		return fmt.Errorf("%w: empty", ErrUnknownDrink)
	}
	if l.catalog != nil && !l.catalog.Has(ev.DrinkID) {
		return fmt.Errorf("%w: %q", ErrUnknownDrink, ev.DrinkID)
	}
	return nil
}

// ValidateUserID checks the partition key constraints of a user id.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" || len(userID) > maxUserIDLen {
		return fmt.Errorf("%w: must be 1-%d bytes", ErrInvalidUser, maxUserIDLen)
	}
	return nil
}

// EventsFor yields a user's events in timestamp order. Every iteration reads
// one consistent snapshot, so a concurrent append is either fully visible or
// not at all. The sequence can be ranged over repeatedly.
func (l *Ledger) EventsFor(ctx context.Context, userID string) iter.Seq2[model.RatingEvent, error] {
	return func(yield func(model.RatingEvent, error) bool) {
		stopped := false
		err := l.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			prefix := eventPrefix(userID)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var ev model.RatingEvent
				if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
					return err
				}
				if !yield(ev, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(model.RatingEvent{}, model.WrapKind("ledger.events", model.ErrUnavailable, err))
		}
	}
}

// Latest calls fn for every (user, drink) pair with its winning rating.
func (l *Ledger) Latest(ctx context.Context, fn func(LatestEntry) error) error {
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefixLatest); it.ValidForPrefix(prefixLatest); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			userID, drinkID, err := splitLatestKey(item.Key())
			if err != nil {
				return err
			}
			e := LatestEntry{UserID: userID, DrinkID: drinkID}
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
	return model.WrapKind("ledger.latest", model.ErrUnavailable, err)
}

// Count returns the number of stored events.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixEvent); it.ValidForPrefix(prefixEvent); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, model.WrapKind("ledger.count", model.ErrUnavailable, err)
	}
	return n, nil
}

// SavePreferences replaces a user's onboarding preferences.
func (l *Ledger) SavePreferences(ctx context.Context, p model.Preferences) error {
	const op = "ledger.save_preferences"
	if err := ValidateUserID(p.UserID); err != nil {
		return model.WrapKind(op, model.ErrValidation, err)
	}
	if err := ctx.Err(); err != nil {
		return model.Wrap(op, err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return model.Wrap(op, err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(prefsKey(p.UserID), data)
	}); err != nil {
		metrics.RecordLedgerError()
		return model.WrapKind(op, model.ErrUnavailable, err)
	}
	return nil
}

// Preferences returns stored preferences; a user without any gets empty ones.
func (l *Ledger) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	p := model.Preferences{UserID: userID}
	if err := ctx.Err(); err != nil {
		return p, model.Wrap("ledger.preferences", err)
	}
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefsKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &p) })
	})
	if err != nil {
		return model.Preferences{UserID: userID}, model.WrapKind("ledger.preferences", model.ErrUnavailable, err)
	}
	return p, nil
}
