package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a compare-and-swap update loses to a
// concurrent writer, e.g. an experiment status transition from a stale
// state.
var ErrConflict = errors.New("storage: conflict")
