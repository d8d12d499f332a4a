package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const passwordResetTokenTTL = 1 * time.Hour

var ErrPasswordResetTokenNotFound = errors.New("invalid or expired reset token")

// PasswordResetStore keeps single-use password reset tokens
type PasswordResetStore interface {
	Store(ctx context.Context, userID uuid.UUID, token string) error
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}

// PasswordResetRepository handles password reset token storage in Redis
type PasswordResetRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPasswordResetRepository(client *redis.Client) *PasswordResetRepository {
	return &PasswordResetRepository{
		client: client,
		ttl:    passwordResetTokenTTL,
	}
}

// Store saves the token with a one hour TTL
func (r *PasswordResetRepository) Store(ctx context.Context, userID uuid.UUID, token string) error {
	if err := r.client.Set(ctx, passwordResetKey(token), userID.String(), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}
	return nil
}

// Consume returns the token's user and deletes the token in one step
func (r *PasswordResetRepository) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	userIDStr, err := r.client.GetDel(ctx, passwordResetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrPasswordResetTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get password reset token: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return userID, nil
}

// passwordResetKey generates a Redis key for password reset tokens
func passwordResetKey(token string) string {
	return fmt.Sprintf("password_reset:%s", hashToken(token))
}
