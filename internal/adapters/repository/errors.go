package repository

import "errors"

// Sentinel kinds for popularity store errors.
var (
	ErrNotFound     = errors.New("drink not tracked")
	ErrInvalidLimit = errors.New("invalid popularity limit")
	ErrEmptyID      = errors.New("empty drink id")
)
