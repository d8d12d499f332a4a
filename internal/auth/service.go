package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

var (
	ErrMissingCredentials = errors.New("email or password is missing")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrInvalidCredentials = errors.New("wrong password")
	ErrExternalAccount    = errors.New("account signs in with an external provider")
	ErrIdentityConflict   = errors.New("user with similar email already exists")
	ErrOAuthDisabled      = errors.New("oauth login is not configured")
)

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// UserStore is the user repository as seen by the auth service
type UserStore interface {
	AccountStore
	VerificationUserStore
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Service handles authentication business logic
type Service struct {
	users          UserStore
	hasher         *PasswordHasher
	sessions       *SessionService
	verification   *VerificationService
	reconciler     *Reconciler
	oauth          OAuthProvider
	passwordResets PasswordResetStore
	chats          ChatBootstrapper
	mailer         EmailService
	logger         *logging.Logger
}

// NewService wires the auth service. oauth may be nil when Google login is not configured.
func NewService(
	users UserStore,
	hasher *PasswordHasher,
	sessions *SessionService,
	verification *VerificationService,
	reconciler *Reconciler,
	oauth OAuthProvider,
	passwordResets PasswordResetStore,
	chats ChatBootstrapper,
	mailer EmailService,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:          users,
		hasher:         hasher,
		sessions:       sessions,
		verification:   verification,
		reconciler:     reconciler,
		oauth:          oauth,
		passwordResets: passwordResets,
		chats:          chats,
		mailer:         mailer,
		logger:         logger,
	}
}

// Register creates a local account and its first chat. Any non-empty
// password is accepted.
func (s *Service) Register(ctx context.Context, email, password string) (*user.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmailFormat
	}
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// the insert itself rejects a taken email; the first chat commits with the user
	newUser, err := createWithUniqueUsername(ctx, s.users, user.CreateParams{
		Email:        email,
		Username:     usernameFromEmail(email),
		PasswordHash: passwordHash,
		Method:       user.MethodLocal,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login checks local credentials and opens a session
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.Method != user.MethodLocal {
		return nil, ErrExternalAccount
	}

	if !s.hasher.Verify(existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(existingUser.PasswordHash) {
		s.upgradeHash(ctx, existingUser.ID, password)
	}

	if len(existingUser.ChatIDs) == 0 {
		if err := s.chats.CreateFirstChat(ctx, existingUser.ID); err != nil {
			s.logger.Error("failed to bootstrap missing first chat", "user_id", existingUser.ID, "error", err)
		}
	}

	session, err := s.sessions.Create(ctx, existingUser.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *Service) upgradeHash(ctx context.Context, userID uuid.UUID, password string) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", "user_id", userID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		s.logger.Warn("failed to store upgraded password hash", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded", "user_id", userID)
}

// Logout destroys the session on the server
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

// UsernameAvailable reports whether nobody has the username yet
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	exists, err := s.users.UsernameExists(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// RequestVerification issues and mails a verification token
func (s *Service) RequestVerification(ctx context.Context, email string) (string, error) {
	return s.verification.Issue(ctx, email)
}

// VerifyEmail consumes a verification token
func (s *Service) VerifyEmail(ctx context.Context, token string) (*user.User, error) {
	return s.verification.Consume(ctx, strings.TrimSpace(token))
}

// GoogleAuthURL is the consent page for the given state
func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.AuthCodeURL(state), nil
}

// LoginWithGoogle exchanges the code, reconciles the profile and opens a
// session unless the email belongs to an account with another method
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*Session, *ReconcileResult, error) {
	if s.oauth == nil {
		return nil, nil, ErrOAuthDisabled
	}

	profile, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.reconciler.Reconcile(ctx, s.oauth.Method(), profile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reconcile profile: %w", err)
	}
	if result.Status == ReconcileConflictRejected {
		return nil, result, ErrIdentityConflict
	}

	session, err := s.sessions.Create(ctx, result.User.ID)
	if err != nil {
		return nil, result, fmt.Errorf("failed to create session: %w", err)
	}

	return session, result, nil
}

// RequestPasswordReset initiates the password reset process
// Always returns nil to prevent email enumeration attacks
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	// external accounts have no password to reset
	if existingUser.Method != user.MethodLocal {
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	if err := s.passwordResets.Store(ctx, existingUser.ID, token); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	// Send password reset email in goroutine (non-blocking)
	go func() {
		emailCtx := logging.WithLogger(context.Background(), s.logger)
		if err := s.mailer.SendPasswordResetEmail(emailCtx, existingUser.Email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", existingUser.Email, "error", err)
		}
	}()

	return nil
}

// ResetPassword sets a new password and signs the user out everywhere
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrMissingCredentials
	}

	userID, err := s.passwordResets.Consume(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessions.DestroyAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to destroy sessions after password reset", "user_id", userID, "error", err)
	}

	return nil
}
