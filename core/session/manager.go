package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/wxauth/core/logger"
)

// Manager handles session lifecycle including creation, retrieval, and expiration.
type Manager[Data any] struct {
	store Store[Data]
	opts  options
}

// NewManager creates a session manager backed by store.
func NewManager[Data any](store Store[Data], opts ...Option) *Manager[Data] {
	o := defaultOptions()
	o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[Data]{store: store, opts: o}
}

// NewManagerFromConfig creates a session manager from environment configuration.
func NewManagerFromConfig[Data any](store Store[Data], cfg Config, opts ...Option) *Manager[Data] {
	base := []Option{
		WithTTL(cfg.TTL),
		WithTouchInterval(cfg.TouchInterval),
		WithSaveUninitialized(cfg.SaveUninitialized),
	}
	return NewManager(store, append(base, opts...)...)
}

// New creates an anonymous session. Nothing is persisted until Store.
func (m *Manager[Data]) New(params NewSessionParams) (Session[Data], error) {
	return New[Data](params, m.opts.ttl)
}

// GetByToken retrieves a session by token and validates expiration.
func (m *Manager[Data]) GetByToken(ctx context.Context, token string) (Session[Data], error) {
	sess, err := m.store.GetByToken(ctx, token)
	if err != nil {
		return Session[Data]{}, err
	}
	if sess.IsExpired() {
		return Session[Data]{}, ErrExpired
	}
	return *sess, nil
}

// Store persists sess according to its state and returns it as written.
// The result reports IsModified when the store was written to.
//
// A deleted session is removed and ErrNotAuthenticated is returned so the
// transport clears the client token. Anonymous sessions are skipped unless
// WithSaveUninitialized is set. When the token was rotated the entry under
// the old token is dropped.
func (m *Manager[Data]) Store(ctx context.Context, sess Session[Data]) (Session[Data], error) {
	if sess.IsDeleted() {
		if err := m.Delete(ctx, sess); err != nil {
			return sess, err
		}
		return sess, ErrNotAuthenticated
	}

	if !sess.IsAuthenticated() && !m.opts.saveUninitialized {
		sess.isModified = false
		return sess, nil
	}

	if prev := sess.PreviousToken(); prev != "" && prev != sess.Token {
		if err := m.store.Delete(ctx, prev); err != nil && !errors.Is(err, ErrNotFound) {
			return sess, errors.Join(ErrDeleteSession, err)
		}
	}

	sess.Touch(m.opts.ttl, m.opts.touchInterval)
	if !sess.IsModified() {
		return sess, nil
	}
	if err := m.store.Save(ctx, &sess); err != nil {
		return sess, errors.Join(ErrSaveSession, err)
	}
	return sess, nil
}

// Delete removes the session under its current and previous tokens.
func (m *Manager[Data]) Delete(ctx context.Context, sess Session[Data]) error {
	for _, token := range []string{sess.Token, sess.PreviousToken()} {
		if token == "" {
			continue
		}
		if err := m.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Join(ErrDeleteSession, err)
		}
	}
	return nil
}

// CleanupExpired removes expired sessions from the store.
func (m *Manager[Data]) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx)
	if err != nil {
		m.opts.logger.ErrorContext(ctx, "session cleanup failed", logger.Error(err))
		return n, err
	}
	if n > 0 {
		m.opts.logger.InfoContext(ctx, "expired sessions removed", slog.Int64("count", n))
	}
	return n, nil
}

// TTL returns the session time-to-live.
func (m *Manager[Data]) TTL() time.Duration {
	return m.opts.ttl
}
