package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetRepository_StoreAndConsumeOnce(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewPasswordResetRepository(client)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, repo.Store(ctx, userID, "reset-token"))
	assert.True(t, mr.Exists(passwordResetKey("reset-token")))
	assert.Equal(t, time.Hour, mr.TTL(passwordResetKey("reset-token")))

	got, err := repo.Consume(ctx, "reset-token")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = repo.Consume(ctx, "reset-token")
	assert.ErrorIs(t, err, ErrPasswordResetTokenNotFound)
}

func TestPasswordResetRepository_Expired(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewPasswordResetRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, uuid.New(), "reset-token"))
	mr.FastForward(61 * time.Minute)

	_, err := repo.Consume(ctx, "reset-token")
	assert.ErrorIs(t, err, ErrPasswordResetTokenNotFound)
}

func TestPasswordResetRepository_CorruptValue(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewPasswordResetRepository(client)

	require.NoError(t, mr.Set(passwordResetKey("reset-token"), "not-a-uuid"))

	_, err := repo.Consume(context.Background(), "reset-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordResetTokenNotFound)
}
