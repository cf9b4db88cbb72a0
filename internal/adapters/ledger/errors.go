package ledger

import "errors"

// Sentinel causes for rejected appends. They are always wrapped under
// model.ErrValidation; storage failures are wrapped under model.ErrUnavailable.
var (
	ErrInvalidRating = errors.New("rating must be an integer in [1,5]")
	ErrUnknownDrink  = errors.New("unknown drink id")
	ErrInvalidUser   = errors.New("invalid user id")
)
