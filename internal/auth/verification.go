package auth

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
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrTokenAlreadyUsed     = errors.New("verification token already used")
)

// VerificationUserStore is the slice of the user repository the flow needs
type VerificationUserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error
	MarkEmailAsVerified(ctx context.Context, userID uuid.UUID, token string) error
}

// VerificationService issues and consumes email verification tokens
type VerificationService struct {
	users  VerificationUserStore
	signer TokenSigner
	mailer EmailService
	ttl    time.Duration
	logger *logging.Logger
}

func NewVerificationService(users VerificationUserStore, signer TokenSigner, mailer EmailService, ttl time.Duration, logger *logging.Logger) *VerificationService {
	return &VerificationService{
		users:  users,
		signer: signer,
		mailer: mailer,
		ttl:    ttl,
		logger: logger,
	}
}

// Issue signs a fresh token for the account, stores it and mails the link.
// Only the latest token is accepted afterwards.
func (s *VerificationService) Issue(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existingUser.EmailVerified {
		return "", ErrEmailAlreadyVerified
	}

	token, err := s.signer.Sign(existingUser.Email, s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}

	if err := s.users.SetVerificationToken(ctx, existingUser.ID, token); err != nil {
		// verified between the read and the write
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrEmailAlreadyVerified
		}
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	// Send verification email in a goroutine (non-blocking)
	go func() {
		emailCtx := logging.WithLogger(context.Background(), s.logger)
		if err := s.mailer.SendVerificationEmail(emailCtx, existingUser.Email, token); err != nil {
			s.logger.Warn("failed to send verification email", "email", existingUser.Email, "error", err)
		}
	}()

	return token, nil
}

// Consume checks the token and marks the account verified. The stored token
// is cleared in the same statement, so a token works at most once.
func (s *VerificationService) Consume(ctx context.Context, token string) (*user.User, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	existingUser, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.EmailVerificationToken == nil || *existingUser.EmailVerificationToken != token {
		return nil, ErrTokenAlreadyUsed
	}

	if err := s.users.MarkEmailAsVerified(ctx, existingUser.ID, token); err != nil {
		// a concurrent request consumed it first
		if errors.Is(err, user.ErrTokenMismatch) {
			return nil, ErrTokenAlreadyUsed
		}
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	existingUser.EmailVerified = true
	existingUser.EmailVerificationToken = nil
	existingUser.EmailVerificationSentAt = nil

	return existingUser, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
