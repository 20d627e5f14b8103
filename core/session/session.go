package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is a user session carrying application data of type Data.
type Session[Data any] struct {
	// ID never changes during the session lifecycle.
	ID uuid.UUID `json:"id"`

	// Token is the bearer value handed to the client (32 random bytes,
	// base64url). It is rotated on authentication.
	Token string `json:"token"`

	// UserID is empty for anonymous sessions.
	UserID string `json:"user_id,omitempty"`

	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Data Data `json:"data"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeletedAt time.Time `json:"deleted_at,omitzero"`

	isModified    bool
	previousToken string
}

// NewSessionParams contains parameters for creating a new session.
type NewSessionParams struct {
	IP        string
	UserAgent string
}

// New creates an anonymous session with a fresh ID and token.
func New[Data any](params NewSessionParams, ttl time.Duration) (Session[Data], error) {
	token, err := generateToken()
	if err != nil {
		return Session[Data]{}, errors.Join(ErrTokenGeneration, err)
	}

	now := time.Now()
	return Session[Data]{
		ID:         uuid.New(),
		Token:      token,
		IP:         params.IP,
		UserAgent:  params.UserAgent,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
		isModified: true,
	}, nil
}

// Authenticate binds the session to userID and rotates its token.
// The session ID is preserved.
func (s *Session[Data]) Authenticate(userID string, data ...Data) error {
	if err := s.rotateToken(); err != nil {
		return err
	}
	s.UserID = userID
	if len(data) > 0 {
		s.Data = data[0]
	}
	s.UpdatedAt = time.Now()
	return nil
}

// Refresh rotates the token without changing authentication state.
func (s *Session[Data]) Refresh() error {
	if err := s.rotateToken(); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	return nil
}

// Logout marks the session for deletion.
func (s *Session[Data]) Logout() {
	s.DeletedAt = time.Now()
	s.isModified = true
}

func (s *Session[Data]) SetData(data Data) {
	s.Data = data
	s.UpdatedAt = time.Now()
	s.isModified = true
}

// Touch extends the expiry once touchInterval has elapsed since the last update.
func (s *Session[Data]) Touch(ttl, touchInterval time.Duration) {
	if time.Since(s.UpdatedAt) >= touchInterval {
		now := time.Now()
		s.ExpiresAt = now.Add(ttl)
		s.UpdatedAt = now
		s.isModified = true
	}
}

func (s Session[Data]) IsAuthenticated() bool {
	return s.UserID != "" && s.Token != ""
}

func (s Session[Data]) IsDeleted() bool {
	return !s.DeletedAt.IsZero()
}

func (s Session[Data]) IsModified() bool {
	return s.isModified
}

func (s Session[Data]) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// PreviousToken returns the token the session was loaded with before any
// rotation, or "" if the token has not been rotated.
func (s Session[Data]) PreviousToken() string {
	return s.previousToken
}

func (s *Session[Data]) rotateToken() error {
	token, err := generateToken()
	if err != nil {
		return errors.Join(ErrTokenGeneration, err)
	}
	if s.previousToken == "" {
		s.previousToken = s.Token
	}
	s.Token = token
	s.isModified = true
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
