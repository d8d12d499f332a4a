package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/user"
)

var ErrSessionNotFound = errors.New("session not found")

// Session binds an opaque id to a user until ExpiresAt
type Session struct {
	ID        string
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	MaxAge    time.Duration
}

// Expired reports whether the session is past its lifetime at t
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionStore persists sessions
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// UserGetter loads users by id
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SessionService issues and resolves server-side sessions
type SessionService struct {
	store  SessionStore
	users  UserGetter
	maxAge time.Duration
	now    func() time.Time
}

func NewSessionService(store SessionStore, users UserGetter, maxAge time.Duration) *SessionService {
	return &SessionService{
		store:  store,
		users:  users,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Create mints a new session for userID
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	id, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.now()
	session := &Session{
		ID:        id,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.maxAge),
		MaxAge:    s.maxAge,
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return session, nil
}

// Destroy removes the session. Unknown ids are not an error.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}

// DestroyAllForUser signs the user out everywhere
func (s *SessionService) DestroyAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

// Resolve returns the user owning a live session
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (*user.User, error) {
	session, err := s.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// owner is gone; the session is worthless
			_ = s.store.Delete(ctx, sessionID)
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return u, nil
}

// Lookup returns the live session without loading the user
func (s *SessionService) Lookup(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.now()) {
		_ = s.store.Delete(ctx, sessionID)
		return nil, ErrSessionNotFound
	}

	return session, nil
}
