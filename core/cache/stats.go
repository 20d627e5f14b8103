package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/wxauth/core/kv"
)

// Stats summarises the entries stored for a feature.
type Stats struct {
	Feature     string    `json:"feature"`
	Entries     int       `json:"entries"`
	Locks       int       `json:"locks"`
	Persistent  int       `json:"persistent"`
	OldestWrite time.Time `json:"oldest_write,omitzero"`
	NewestWrite time.Time `json:"newest_write,omitzero"`
}

// Stats scans the store for feature's keys. Entries that vanish during the
// scan are skipped.
func (c *Cache) Stats(ctx context.Context, feature string) (Stats, error) {
	keys, err := c.store.Keys(ctx, Pattern(feature))
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats %q: %w", feature, err)
	}

	st := Stats{Feature: feature}
	for _, key := range keys {
		if strings.HasSuffix(key, lockSuffix) {
			st.Locks++
			continue
		}

		var e entry[json.RawMessage]
		if err := c.store.Get(ctx, key, &e); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return Stats{}, fmt.Errorf("cache: stats %q: %w", feature, err)
		}
		st.Entries++

		ttl, err := c.store.TTL(ctx, key)
		if err == nil && ttl == kv.NoExpiry {
			st.Persistent++
		}

		if st.OldestWrite.IsZero() || e.WrittenAt.Before(st.OldestWrite) {
			st.OldestWrite = e.WrittenAt
		}
		if e.WrittenAt.After(st.NewestWrite) {
			st.NewestWrite = e.WrittenAt
		}
	}
	return st, nil
}

// Purge deletes every entry and lock of feature.
func (c *Cache) Purge(ctx context.Context, feature string) (int, error) {
	keys, err := c.store.Keys(ctx, Pattern(feature))
	if err != nil {
		return 0, fmt.Errorf("cache: purge %q: %w", feature, err)
	}
	removed := 0
	for _, key := range keys {
		ok, err := c.store.Delete(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("cache: purge %q: %w", feature, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
