package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository handles session persistence in Redis
type RedisSessionRepository struct {
	client *redis.Client
}

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

// getSessionKey generates the Redis key for a session
func getSessionKey(idHash string) string {
	return fmt.Sprintf("session:%s", idHash)
}

// getUserSessionsKey generates the Redis key for user's session set
func getUserSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_sessions:%s", userID.String())
}

// Save stores a session in Redis with TTL
func (r *RedisSessionRepository) Save(ctx context.Context, session *Session) error {
	idHash := hashToken(session.ID)
	sessionKey := getSessionKey(idHash)
	userSessionsKey := getUserSessionsKey(session.UserID)

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session expiration time is in the past")
	}

	pipe := r.client.TxPipeline()

	pipe.HSet(ctx, sessionKey, map[string]any{
		"user_id":    session.UserID.String(),
		"issued_at":  session.IssuedAt.Unix(),
		"expires_at": session.ExpiresAt.Unix(),
	})
	pipe.Expire(ctx, sessionKey, ttl)

	// the set lives as long as the newest session
	pipe.SAdd(ctx, userSessionsKey, idHash)
	pipe.Expire(ctx, userSessionsKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Get retrieves a session by its id
func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.client.HGetAll(ctx, getSessionKey(hashToken(sessionID))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, ErrSessionNotFound
	}

	issuedAt, err := parseUnix(data["issued_at"])
	if err != nil {
		return nil, ErrSessionNotFound
	}
	expiresAt, err := parseUnix(data["expires_at"])
	if err != nil {
		return nil, ErrSessionNotFound
	}

	return &Session{
		ID:        sessionID,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		MaxAge:    expiresAt.Sub(issuedAt),
	}, nil
}

// Delete removes a session; deleting a missing session is a no-op
func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	idHash := hashToken(sessionID)
	sessionKey := getSessionKey(idHash)

	userIDStr, err := r.client.HGet(ctx, sessionKey, "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get session owner: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey)
	if userID, parseErr := uuid.Parse(userIDStr); parseErr == nil {
		pipe.SRem(ctx, getUserSessionsKey(userID), idHash)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteAllForUser removes every session of a user
func (r *RedisSessionRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	userSessionsKey := getUserSessionsKey(userID)

	idHashes, err := r.client.SMembers(ctx, userSessionsKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	keys := make([]string, 0, len(idHashes)+1)
	for _, idHash := range idHashes {
		keys = append(keys, getSessionKey(idHash))
	}
	keys = append(keys, userSessionsKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return nil
}

func parseUnix(s string) (time.Time, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}
