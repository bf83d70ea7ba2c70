package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when a conditional stock decrement matched no row.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateOrderNumber is returned when an order number is already taken.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	// ErrStateConflict is returned when a conditional state update lost a race.
	ErrStateConflict = errors.New("state changed concurrently")
	// ErrDuplicate is returned for other unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)
