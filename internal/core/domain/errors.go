package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services and adapters. Wrap them with
// fmt.Errorf("%w: ...") to add detail; callers match with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownBus       = errors.New("unknown bus")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidSeats     = errors.New("invalid seats")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("timeout")
	ErrConflict         = errors.New("conflict")
)

// ErrStaleWrite is returned by a repository Save when the record changed
// after it was read. It matches ErrConflict too.
var ErrStaleWrite = fmt.Errorf("%w: bus changed since it was read", ErrConflict)
