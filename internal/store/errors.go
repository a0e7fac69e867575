package store

import "errors"

// ErrNotFound is returned when a database record is not found.
var ErrNotFound = errors.New("record not found")
