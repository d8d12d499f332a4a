package user

import (
	"time"

	"github.com/google/uuid"
)

// Method is the way an account authenticates. An account has exactly one.
type Method string

const (
	MethodLocal  Method = "local"
	MethodGoogle Method = "google"
)

type User struct {
	ID                      uuid.UUID   `json:"id"`
	Email                   string      `json:"email"`
	Username                string      `json:"username"`
	PasswordHash            string      `json:"-"` // Never expose password hash in JSON
	Method                  Method      `json:"method"`
	FullName                string      `json:"full_name,omitempty"`
	EmailVerified           bool        `json:"email_verified"`
	EmailVerificationToken  *string     `json:"-"`
	EmailVerificationSentAt *time.Time  `json:"-"`
	AvatarURL               *string     `json:"avatar_url,omitempty"`
	ChatIDs                 []uuid.UUID `json:"chats"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// LastChatID returns the most recently appended chat, if any
func (u *User) LastChatID() (uuid.UUID, bool) {
	if len(u.ChatIDs) == 0 {
		return uuid.Nil, false
	}
	return u.ChatIDs[len(u.ChatIDs)-1], true
}

// CreateParams carries everything needed to insert a user
type CreateParams struct {
	Email         string
	Username      string
	PasswordHash  string
	Method        Method
	FullName      string
	EmailVerified bool
	AvatarURL     *string
}
