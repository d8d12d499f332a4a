package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/user"
)

// memUserStore behaves like the Postgres repository, unique constraints and
// conditional updates included
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User

	// takenUsernames simulates accounts that exist only to occupy a username
	takenUsernames map[string]bool
	// beforeCreate runs before each insert, e.g. to lose a race
	beforeCreate func(params user.CreateParams)
	createCalls  int
	// firstChatErr fails the first chat insert, rolling the account back
	firstChatErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:          make(map[uuid.UUID]*user.User),
		takenUsernames: make(map[string]bool),
	}
}

func (s *memUserStore) add(u *user.User) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
	return clone(u)
}

func (s *memUserStore) get(id uuid.UUID) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return clone(u)
	}
	return nil
}

func (s *memUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func clone(u *user.User) *user.User {
	c := *u
	c.ChatIDs = append([]uuid.UUID(nil), u.ChatIDs...)
	return &c
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	if u := s.get(id); u != nil {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (s *memUserStore) CreateWithFirstChat(_ context.Context, params user.CreateParams) (*user.User, error) {
	if s.beforeCreate != nil {
		s.beforeCreate(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++

	for _, u := range s.users {
		if strings.EqualFold(u.Email, params.Email) {
			return nil, user.ErrDuplicateEmail
		}
	}
	if s.takenUsernames[params.Username] {
		return nil, user.ErrDuplicateUsername
	}
	for _, u := range s.users {
		if u.Username == params.Username {
			return nil, user.ErrDuplicateUsername
		}
	}

	if s.firstChatErr != nil {
		return nil, s.firstChatErr
	}

	now := time.Now()
	u := &user.User{
		ID:            uuid.New(),
		Email:         params.Email,
		Username:      params.Username,
		PasswordHash:  params.PasswordHash,
		Method:        params.Method,
		FullName:      params.FullName,
		EmailVerified: params.EmailVerified,
		AvatarURL:     params.AvatarURL,
		ChatIDs:       []uuid.UUID{uuid.New()},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.users[u.ID] = u
	return clone(u), nil
}

func (s *memUserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.takenUsernames[username] {
		return true, nil
	}
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) SetVerificationToken(_ context.Context, userID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.EmailVerified {
		return user.ErrNotFound
	}
	now := time.Now()
	u.EmailVerificationToken = &token
	u.EmailVerificationSentAt = &now
	return nil
}

func (s *memUserStore) MarkEmailAsVerified(_ context.Context, userID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.EmailVerificationToken == nil || *u.EmailVerificationToken != token {
		return user.ErrTokenMismatch
	}
	u.EmailVerified = true
	u.EmailVerificationToken = nil
	u.EmailVerificationSentAt = nil
	return nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// fakeChats repairs accounts that lack a chat, appending like the chat repository does
type fakeChats struct {
	users *memUserStore
	err   error

	mu    sync.Mutex
	calls []uuid.UUID
}

func (c *fakeChats) CreateFirstChat(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	c.calls = append(c.calls, userID)
	c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.users.mu.Lock()
	defer c.users.mu.Unlock()
	if u, ok := c.users.users[userID]; ok {
		u.ChatIDs = append(u.ChatIDs, uuid.New())
	}
	return nil
}

func (c *fakeChats) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type sentMail struct {
	kind  string
	to    string
	token string
}

// fakeMailer records mails; the service sends them from a goroutine
type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentMail, 10)}
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, toEmail, token string) error {
	m.sent <- sentMail{kind: "verification", to: toEmail, token: token}
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, toEmail, token string) error {
	m.sent <- sentMail{kind: "reset", to: toEmail, token: token}
	return nil
}

func (m *fakeMailer) next() (sentMail, bool) {
	select {
	case mail := <-m.sent:
		return mail, true
	case <-time.After(2 * time.Second):
		return sentMail{}, false
	}
}

type scheduledAvatar struct {
	userID uuid.UUID
	url    string
}

type fakeAvatars struct {
	mu        sync.Mutex
	scheduled []scheduledAvatar
}

func (a *fakeAvatars) Schedule(userID uuid.UUID, pictureURL string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scheduled = append(a.scheduled, scheduledAvatar{userID: userID, url: pictureURL})
	return true
}

func (a *fakeAvatars) all() []scheduledAvatar {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]scheduledAvatar(nil), a.scheduled...)
}
