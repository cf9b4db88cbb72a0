package catalog

import (
	"sync/atomic"
)

// Store publishes the current Snapshot. Readers load a snapshot once per
// request and keep using it; Swap never blocks them.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewStore creates a store holding initial.
func NewStore(initial *Snapshot) *Store {
	st := &Store{}
	if initial != nil {
		st.Swap(initial)
	}
	return st
}

// Current returns the active snapshot, or nil before the first Swap.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// Swap atomically publishes next and returns the snapshot it replaced.
func (st *Store) Swap(next *Snapshot) *Snapshot {
	prev := st.current.Swap(next)
	st.version.Add(1)
	return prev
}

// Version counts the snapshots published so far.
func (st *Store) Version() uint64 {
	return st.version.Load()
}

// Has reports whether the active snapshot holds id.
func (st *Store) Has(id string) bool {
	snap := st.current.Load()
	return snap != nil && snap.Has(id)
}
