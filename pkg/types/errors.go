package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput is returned when an inbound update cannot be acted on.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataFormat is returned when a stored checklist state or key
	// cannot be decoded.
	ErrDataFormat = errors.New("data format error")

	// ErrStoreUnavailable is returned when the store cannot be opened,
	// queried or written.
	ErrStoreUnavailable = errors.New("store unavailable")
)
