package lock

import "errors"

var (
	// ErrLockTimeout is returned when every acquisition attempt found the
	// lock held.
	ErrLockTimeout = errors.New("lock: failed to acquire lock")

	ErrInvalidTTL    = errors.New("lock: ttl must be positive")
	ErrInvalidPolicy = errors.New("lock: retry policy needs at least one attempt")

	errHeld = errors.New("lock: held")
)
