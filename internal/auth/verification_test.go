package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

func newTestVerification(t *testing.T, users *memUserStore) (*VerificationService, *fakeMailer, *clock) {
	t.Helper()
	c := &clock{t: time.Now()}
	signer, err := NewPasetoSigner(testTokenSecret)
	require.NoError(t, err)
	signer.now = c.now

	mailer := newFakeMailer()
	return NewVerificationService(users, signer, mailer, time.Hour, logging.NewNopLogger()), mailer, c
}

func TestVerification_IssueAndConsume(t *testing.T) {
	users := newMemUserStore()
	u := users.add(&user.User{Email: "a@x.com", Username: "a", Method: user.MethodLocal})
	svc, mailer, _ := newTestVerification(t, users)
	ctx := context.Background()

	token, err := svc.Issue(ctx, " A@X.com ")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	mail, ok := mailer.next()
	require.True(t, ok, "verification email not sent")
	assert.Equal(t, "verification", mail.kind)
	assert.Equal(t, "a@x.com", mail.to)
	assert.Equal(t, token, mail.token)

	verified, err := svc.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.ID)
	assert.True(t, verified.EmailVerified)
	assert.Nil(t, verified.EmailVerificationToken)

	stored := users.get(u.ID)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.EmailVerificationToken)
}

func TestVerification_TokenWorksOnce(t *testing.T) {
	users := newMemUserStore()
	users.add(&user.User{Email: "a@x.com", Method: user.MethodLocal})
	svc, _, _ := newTestVerification(t, users)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, token)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestVerification_OnlyLatestTokenCounts(t *testing.T) {
	users := newMemUserStore()
	users.add(&user.User{Email: "a@x.com", Method: user.MethodLocal})
	svc, _, c := newTestVerification(t, users)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	// a later iat keeps the second token distinct from the first
	c.t = c.t.Add(2 * time.Second)
	second, err := svc.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = svc.Consume(ctx, first)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

	_, err = svc.Consume(ctx, second)
	assert.NoError(t, err)
}

func TestVerification_Expired(t *testing.T) {
	users := newMemUserStore()
	users.add(&user.User{Email: "a@x.com", Method: user.MethodLocal})
	svc, _, c := newTestVerification(t, users)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = svc.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerification_IssueErrors(t *testing.T) {
	users := newMemUserStore()
	users.add(&user.User{Email: "done@x.com", Method: user.MethodLocal, EmailVerified: true})
	svc, _, _ := newTestVerification(t, users)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "done@x.com")
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)

	_, err = svc.Issue(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestVerification_ConsumeErrors(t *testing.T) {
	users := newMemUserStore()
	svc, _, _ := newTestVerification(t, users)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// valid signature for an account that does not exist
	token, err := svc.signer.Sign("ghost@x.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.Consume(ctx, token)
	assert.ErrorIs(t, err, user.ErrNotFound)

	// valid signature that was never stored
	users.add(&user.User{Email: "a@x.com", Method: user.MethodLocal})
	token, err = svc.signer.Sign("a@x.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
}
