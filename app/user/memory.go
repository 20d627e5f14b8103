package user

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byOpen map[string]User
	byID   map[int64]string
	next   int64
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byOpen: make(map[string]User),
		byID:   make(map[int64]string),
		next:   FirstUserID,
		now:    time.Now,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, u User) (User, error) {
	if u.OpenID == "" {
		return User{}, ErrEmptyOpenID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.byOpen[u.OpenID]
	if !ok {
		existing = User{UserID: s.next, OpenID: u.OpenID, Role: u.Role, CreatedAt: now}
		s.next++
		s.byID[existing.UserID] = u.OpenID
	}
	merge(&existing, u)
	normalize(&existing)
	existing.UpdatedAt = now
	s.byOpen[u.OpenID] = existing
	return existing, nil
}

func (s *MemoryStore) GetByID(_ context.Context, userID int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	openID, ok := s.byID[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byOpen[openID], nil
}

func (s *MemoryStore) GetByOpenID(_ context.Context, openID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byOpen[openID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
