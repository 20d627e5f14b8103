package cache

import (
	"errors"

	"github.com/dmitrymomot/wxauth/core/lock"
)

var (
	// ErrLockTimeout is returned when a miss could not take the compute lock
	// within the retry budget. It matches lock.ErrLockTimeout.
	ErrLockTimeout = lock.ErrLockTimeout

	ErrTypeMismatch = errors.New("cache: coalesced result has unexpected type")
	ErrInvalidKey   = errors.New("cache: invalid key input")
	ErrNilCompute   = errors.New("cache: nil compute function")
)
