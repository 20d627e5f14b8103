package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing key. Stored zero values such as false,
	// 0 or "" are hits, not misses.
	ErrNotFound = errors.New("kv: key not found")

	// ErrStoreFailure covers transport failures and values that cannot be
	// encoded or decoded.
	ErrStoreFailure = errors.New("kv: store failure")

	// ErrSerialization is the StoreFailure raised by the JSON codec.
	ErrSerialization = fmt.Errorf("%w: serialization", ErrStoreFailure)

	ErrEmptyKey = errors.New("kv: empty key")
)
