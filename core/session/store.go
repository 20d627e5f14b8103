package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/wxauth/core/kv"
)

// Store defines the persistence interface for session management.
// Implementations must handle concurrent access safely.
type Store[Data any] interface {
	GetByToken(ctx context.Context, token string) (*Session[Data], error)
	Save(ctx context.Context, session *Session[Data]) error
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes all expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// KVStore keeps sessions in the key-value store under "session:{token}".
// Entries expire with the session.
type KVStore[Data any] struct {
	kv *kv.Client
}

func NewKVStore[Data any](client *kv.Client) *KVStore[Data] {
	return &KVStore[Data]{kv: client}
}

func (s *KVStore[Data]) GetByToken(ctx context.Context, token string) (*Session[Data], error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var sess Session[Data]
	err := s.kv.Get(ctx, storeKey(token), &sess)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, kv.ErrSerialization):
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	case err != nil:
		return nil, err
	}
	return &sess, nil
}

func (s *KVStore[Data]) Save(ctx context.Context, sess *Session[Data]) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}
	return s.kv.Set(ctx, storeKey(sess.Token), sess, ttl)
}

func (s *KVStore[Data]) Delete(ctx context.Context, token string) error {
	ok, err := s.kv.Delete(ctx, storeKey(token))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired sweeps entries the store did not expire on its own, including
// payloads that no longer decode.
func (s *KVStore[Data]) DeleteExpired(ctx context.Context) (int64, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, key := range keys {
		var sess Session[Data]
		err := s.kv.Get(ctx, key, &sess)
		switch {
		case errors.Is(err, kv.ErrNotFound):
			continue
		case errors.Is(err, kv.ErrSerialization):
			stale = append(stale, key)
		case err != nil:
			return 0, err
		case sess.IsExpired() || sess.IsDeleted():
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return s.kv.DeleteMany(ctx, stale...)
}

const keyPrefix = "session:"

func storeKey(token string) string { return keyPrefix + token }
