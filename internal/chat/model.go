package chat

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	ID            uuid.UUID `json:"id"`
	InitializedBy uuid.UUID `json:"initialized_by"`
	Title         *string   `json:"title,omitempty"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsEmpty reports whether nobody has written into the chat yet
func (c *Chat) IsEmpty() bool {
	return c.MessageCount == 0
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// BootstrapResult is what EnsureActiveChat hands back
type BootstrapResult struct {
	Reused bool
	Chat   *Chat
}
