package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

var ErrInvalidProfile = errors.New("oauth profile has no usable email")

// ReconcileStatus says what happened to an incoming external identity
type ReconcileStatus string

const (
	ReconcileCreated          ReconcileStatus = "created"
	ReconcileLinkedExisting   ReconcileStatus = "linked_existing"
	ReconcileConflictRejected ReconcileStatus = "conflict_rejected"
)

// ReconcileResult carries the user for Created and LinkedExisting; User is nil on conflict
type ReconcileResult struct {
	Status ReconcileStatus
	User   *user.User
}

// ChatBootstrapper gives an existing account that has no chat its first one
type ChatBootstrapper interface {
	CreateFirstChat(ctx context.Context, userID uuid.UUID) error
}

// AvatarScheduler queues the import of a remote avatar. It must not block.
type AvatarScheduler interface {
	Schedule(userID uuid.UUID, pictureURL string) bool
}

// AccountStore is what reconciliation needs from the user repository
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	// CreateWithFirstChat inserts the account and its first chat atomically
	CreateWithFirstChat(ctx context.Context, params user.CreateParams) (*user.User, error)
}

const maxUsernameAttempts = 5

// Reconciler maps an external profile onto a local account
type Reconciler struct {
	users   AccountStore
	hasher  *PasswordHasher
	chats   ChatBootstrapper
	avatars AvatarScheduler
	logger  *logging.Logger
}

func NewReconciler(users AccountStore, hasher *PasswordHasher, chats ChatBootstrapper, avatars AvatarScheduler, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		users:   users,
		hasher:  hasher,
		chats:   chats,
		avatars: avatars,
		logger:  logger,
	}
}

// Reconcile looks the profile's email up and then creates, links or rejects.
// A conflict is decided before any session exists, so a look-alike external
// login can never take over a local account.
func (r *Reconciler) Reconcile(ctx context.Context, method user.Method, profile *OAuthProfile) (*ReconcileResult, error) {
	email := normalizeEmail(profile.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidProfile
	}

	existing, err := r.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return r.decide(ctx, method, existing), nil
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	created, err := r.create(ctx, method, email, profile)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			// lost a race with another first login for the same email
			existing, getErr := r.users.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, fmt.Errorf("failed to reload account: %w", getErr)
			}
			return r.decide(ctx, method, existing), nil
		}
		return nil, err
	}

	return &ReconcileResult{Status: ReconcileCreated, User: created}, nil
}

func (r *Reconciler) decide(ctx context.Context, method user.Method, existing *user.User) *ReconcileResult {
	if existing.Method != method {
		r.logger.Warn("external login rejected: account uses another method",
			"user_id", existing.ID, "account_method", existing.Method, "login_method", method)
		return &ReconcileResult{Status: ReconcileConflictRejected}
	}

	if len(existing.ChatIDs) == 0 {
		r.bootstrapChat(ctx, existing.ID)
	}

	return &ReconcileResult{Status: ReconcileLinkedExisting, User: existing}
}

func (r *Reconciler) create(ctx context.Context, method user.Method, email string, profile *OAuthProfile) (*user.User, error) {
	// external accounts never log in with a password; the hash only fills the column
	secret, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account secret: %w", err)
	}
	passwordHash, err := r.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash account secret: %w", err)
	}

	params := user.CreateParams{
		Email:         email,
		Username:      usernameFromEmail(email),
		PasswordHash:  passwordHash,
		Method:        method,
		FullName:      profile.Name,
		EmailVerified: true,
	}
	if profile.Picture != "" {
		picture := profile.Picture
		params.AvatarURL = &picture
	}

	created, err := createWithUniqueUsername(ctx, r.users, params)
	if err != nil {
		return nil, err
	}

	r.logger.Info("external account created", "user_id", created.ID, "method", method)

	if profile.Picture != "" && r.avatars != nil {
		if !r.avatars.Schedule(created.ID, profile.Picture) {
			r.logger.Warn("avatar import not scheduled", "user_id", created.ID)
		}
	}

	return created, nil
}

func (r *Reconciler) bootstrapChat(ctx context.Context, userID uuid.UUID) {
	if err := r.chats.CreateFirstChat(ctx, userID); err != nil {
		r.logger.Error("failed to bootstrap missing first chat", "user_id", userID, "error", err)
	}
}

// createWithUniqueUsername inserts the account, moving to a suffixed username
// when the derived one is taken (a@x.com and a@y.com both want "a")
func createWithUniqueUsername(ctx context.Context, users AccountStore, params user.CreateParams) (*user.User, error) {
	base := params.Username
	for attempt := 1; ; attempt++ {
		created, err := users.CreateWithFirstChat(ctx, params)
		if !errors.Is(err, user.ErrDuplicateUsername) || attempt == maxUsernameAttempts {
			return created, err
		}

		suffix, err := randomSuffix()
		if err != nil {
			return nil, fmt.Errorf("failed to generate username suffix: %w", err)
		}
		params.Username = base + "_" + suffix
	}
}

// usernameFromEmail takes the local part, as usernames always have been
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func randomSuffix() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
