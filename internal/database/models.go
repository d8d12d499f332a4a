package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                      uuid.UUID  `bun:"id,pk,type:uuid"`
	Email                   string     `bun:"email,notnull"`
	Username                string     `bun:"username,notnull"`
	PasswordHash            string     `bun:"password_hash,notnull"`
	Method                  string     `bun:"method,notnull"`
	FullName                string     `bun:"full_name,notnull"`
	EmailVerified           bool       `bun:"email_verified,notnull"`
	EmailVerificationToken  *string    `bun:"email_verification_token"`
	EmailVerificationSentAt *time.Time `bun:"email_verification_sent_at"`
	AvatarURL               *string    `bun:"avatar_url"`
	ChatIDs                 []string   `bun:"chat_ids,array"`
	CreatedAt               time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt               time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Chat is the chats table row
type Chat struct {
	bun.BaseModel `bun:"table:chats,alias:c"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	InitializedBy uuid.UUID `bun:"initialized_by,notnull,type:uuid"`
	Title         *string   `bun:"title"`
	MessageCount  int       `bun:"message_count,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Message is the messages table row
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	ChatID    uuid.UUID `bun:"chat_id,notnull,type:uuid"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
