package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

var (
	ErrEmptyMessage = errors.New("message content is required")
	ErrInvalidRole  = errors.New("invalid message role")
	ErrNotOwner     = errors.New("chat belongs to another user")
)

// Store persists chats
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, title *string) (*Chat, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Chat, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Chat, error)
	AddMessage(ctx context.Context, chatID uuid.UUID, role Role, content string) (*Message, error)
}

// UserReader loads the owner of a chat list
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Service decides when a new chat is really needed
type Service struct {
	chats  Store
	users  UserReader
	logger *logging.Logger
	now    func() time.Time
}

func NewService(chats Store, users UserReader, logger *logging.Logger) *Service {
	return &Service{
		chats:  chats,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureActiveChat hands back the user's last chat while it is still empty and
// only creates a new one once that chat has messages. This keeps users from
// piling up blank chats by hammering "new chat".
func (s *Service) EnsureActiveChat(ctx context.Context, userID uuid.UUID, title *string) (*BootstrapResult, error) {
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load chat owner: %w", err)
	}

	if lastID, ok := owner.LastChatID(); ok {
		last, err := s.chats.GetByID(ctx, lastID)
		switch {
		case err == nil:
			if last.InitializedBy == userID && last.IsEmpty() {
				return &BootstrapResult{Reused: true, Chat: last}, nil
			}
		case errors.Is(err, ErrNotFound):
			// dangling reference in the user's list; a fresh chat replaces it
			s.logger.Warn("last chat missing", "user_id", userID, "chat_id", lastID)
		default:
			return nil, fmt.Errorf("failed to load last chat: %w", err)
		}
	}

	chatTitle := DefaultTitle(s.now())
	if title != nil && strings.TrimSpace(*title) != "" {
		chatTitle = strings.TrimSpace(*title)
	}

	created, err := s.chats.Create(ctx, userID, &chatTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.logger.Info("chat created", "user_id", userID, "chat_id", created.ID)
	return &BootstrapResult{Reused: false, Chat: created}, nil
}

// CreateFirstChat gives a brand-new account its first, untitled chat
func (s *Service) CreateFirstChat(ctx context.Context, userID uuid.UUID) error {
	created, err := s.chats.Create(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("failed to create first chat: %w", err)
	}

	s.logger.Info("first chat created", "user_id", userID, "chat_id", created.ID)
	return nil
}

// List returns the user's chats, oldest first
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Chat, error) {
	return s.chats.ListByUser(ctx, userID)
}

// AddMessage appends a message to a chat owned by userID
func (s *Service) AddMessage(ctx context.Context, userID, chatID uuid.UUID, role Role, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	c, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.InitializedBy != userID {
		return nil, ErrNotOwner
	}

	return s.chats.AddMessage(ctx, chatID, role, content)
}

// DefaultTitle is the title a chat gets when the client does not send one
func DefaultTitle(t time.Time) string {
	return fmt.Sprintf("New Chat %d%d", t.Day(), t.Nanosecond()/int(time.Millisecond))
}
