// Package lock implements a time-bounded mutual-exclusion lock on top of the
// kv store.
//
// A lock is a key written with set-if-absent and a TTL, so a crashed holder
// can never wedge it for longer than the TTL. Each acquisition stores a
// random owner token. Unlock releases with a compare-and-delete on that
// token, so a holder whose TTL already lapsed cannot remove a lock that a
// different holder has since taken. Release keeps the unconditional delete
// for callers that need it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/wxauth/core/logger"
)

// Store is the subset of kv.Client the lock needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeleteIfValue(ctx context.Context, key string, value any) (bool, error)
}

// Lease describes a held lock.
type Lease struct {
	Key        string
	Token      string
	TTL        time.Duration
	AcquiredAt time.Time
}

// ExpiresAt is when the store drops the lock on its own.
func (l Lease) ExpiresAt() time.Time { return l.AcquiredAt.Add(l.TTL) }

// RetryPolicy bounds Acquire. MaxAttempts counts every try, including the first.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy is 5 attempts spaced 100ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: 100 * time.Millisecond, MaxAttempts: 5}
}

// Locker acquires and releases locks.
type Locker struct {
	store       Store
	verifyOwner bool
	newToken    func() string
	logger      *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithOwnershipCheck toggles compare-and-delete in Unlock. It is on by default.
func WithOwnershipCheck(enabled bool) Option {
	return func(l *Locker) { l.verifyOwner = enabled }
}

// WithTokenGenerator overrides the owner token source.
func WithTokenGenerator(fn func() string) Option {
	return func(l *Locker) {
		if fn != nil {
			l.newToken = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Locker) {
		if log != nil {
			l.logger = log
		}
	}
}

// New returns a Locker backed by store.
func New(store Store, opts ...Option) *Locker {
	l := &Locker{
		store:       store,
		verifyOwner: true,
		newToken:    uuid.NewString,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire makes a single attempt. ok is false when another holder has it.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if ttl <= 0 {
		return Lease{}, false, ErrInvalidTTL
	}
	lease := Lease{Key: key, Token: l.newToken(), TTL: ttl, AcquiredAt: time.Now()}
	ok, err := l.store.SetNX(ctx, key, lease.Token, ttl)
	if err != nil {
		return Lease{}, false, fmt.Errorf("lock: acquire %q: %w", key, err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	return lease, true, nil
}

// Acquire retries TryAcquire per policy. It returns ErrLockTimeout after the
// last failed attempt, or the context error if ctx ends first.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration, policy RetryPolicy) (Lease, error) {
	if policy.MaxAttempts < 1 {
		return Lease{}, ErrInvalidPolicy
	}

	attempts := 0
	op := func() (Lease, error) {
		attempts++
		lease, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return Lease{}, backoff.Permanent(err)
		}
		if !ok {
			return Lease{}, errHeld
		}
		return lease, nil
	}
	lease, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return lease, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return Lease{}, permanent.Unwrap()
	}
	if errors.Is(err, errHeld) {
		l.logger.WarnContext(ctx, "lock acquisition exhausted",
			logger.Key("lock_key", key),
			logger.RetryCount(attempts),
		)
		return Lease{}, fmt.Errorf("%w %q after %d attempts", ErrLockTimeout, key, attempts)
	}
	return Lease{}, err
}

// Release deletes key regardless of who holds it. Releasing an absent lock
// is not an error.
func (l *Locker) Release(ctx context.Context, key string) error {
	if _, err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("lock: release %q: %w", key, err)
	}
	return nil
}

// ReleaseOwned deletes the lock only if it still carries lease's token. It
// reports false when the lock expired or passed to another holder.
func (l *Locker) ReleaseOwned(ctx context.Context, lease Lease) (bool, error) {
	ok, err := l.store.DeleteIfValue(ctx, lease.Key, lease.Token)
	if err != nil {
		return false, fmt.Errorf("lock: release %q: %w", lease.Key, err)
	}
	return ok, nil
}

// Unlock releases lease using the configured release mode.
func (l *Locker) Unlock(ctx context.Context, lease Lease) error {
	if !l.verifyOwner {
		return l.Release(ctx, lease.Key)
	}
	ok, err := l.ReleaseOwned(ctx, lease)
	if err != nil {
		return err
	}
	if !ok {
		l.logger.WarnContext(ctx, "lock lost before release",
			logger.Key("lock_key", lease.Key),
			logger.Key("held_for", time.Since(lease.AcquiredAt)),
		)
	}
	return nil
}
