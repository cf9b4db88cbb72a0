package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrDuplicateID  = errors.New("duplicate drink id")
	ErrEmptyID      = errors.New("empty drink id")
	ErrFormat       = errors.New("unsupported catalog format")
	ErrNoSnapshot   = errors.New("no catalog snapshot loaded")
	ErrUnknownFacet = errors.New("unknown facet value")
)
