package store

import "errors"

// ErrInvariantViolation is returned by WithBookMut when a mutation would
// leave available copies outside [0, total]. The mutation is discarded.
var ErrInvariantViolation = errors.New("store: book availability invariant violated")
