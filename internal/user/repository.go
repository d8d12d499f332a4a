package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/chatbot-auth/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrTokenMismatch means the stored verification token is gone or different
	ErrTokenMismatch = errors.New("verification token does not match")
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// CreateWithFirstChat inserts a new user together with its first, untitled
// chat in one transaction: either both rows exist afterwards or neither does.
// Email and username uniqueness is left to the database so concurrent
// registrations cannot both succeed.
func (r *Repository) CreateWithFirstChat(ctx context.Context, params CreateParams) (*User, error) {
	chatID := uuid.New()
	dbUser := &database.User{
		ID:            uuid.New(),
		Email:         params.Email,
		Username:      params.Username,
		PasswordHash:  params.PasswordHash,
		Method:        string(params.Method),
		FullName:      params.FullName,
		EmailVerified: params.EmailVerified,
		AvatarURL:     params.AvatarURL,
		ChatIDs:       []string{chatID.String()},
	}
	dbChat := &database.Chat{
		ID:            chatID,
		InitializedBy: dbUser.ID,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(dbUser).Returning("*").Exec(ctx); err != nil {
			if constraint, ok := database.UniqueViolation(err); ok {
				if constraint == usernameConstraint {
					return ErrDuplicateUsername
				}
				return ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if _, err := tx.NewInsert().Model(dbChat).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("failed to create first chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "lower(email) = lower(?)", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UsernameExists reports whether the username is taken
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("username = ?", username).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// SetVerificationToken stores a freshly issued verification token on an unverified user
func (r *Repository) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verification_token = ?", token).
		Set("email_verification_sent_at = NOW()").
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("email_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	return requireRow(result)
}

// MarkEmailAsVerified flips email_verified and clears the stored token, but only
// while the stored token is still the presented one. A second call with the same
// token affects no rows and returns ErrTokenMismatch.
func (r *Repository) MarkEmailAsVerified(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verified = ?", true).
		Set("email_verification_token = NULL").
		Set("email_verification_sent_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("email_verification_token = ?", token).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark email as verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTokenMismatch
	}

	return nil
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRow(result)
}

// UpdateAvatarURL points the user at a newly stored avatar
func (r *Repository) UpdateAvatarURL(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("avatar_url = ?", avatarURL).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update avatar url: %w", err)
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	chatIDs := make([]uuid.UUID, 0, len(dbu.ChatIDs))
	for _, raw := range dbu.ChatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		chatIDs = append(chatIDs, id)
	}

	return &User{
		ID:                      dbu.ID,
		Email:                   dbu.Email,
		Username:                dbu.Username,
		PasswordHash:            dbu.PasswordHash,
		Method:                  Method(dbu.Method),
		FullName:                dbu.FullName,
		EmailVerified:           dbu.EmailVerified,
		EmailVerificationToken:  dbu.EmailVerificationToken,
		EmailVerificationSentAt: dbu.EmailVerificationSentAt,
		AvatarURL:               dbu.AvatarURL,
		ChatIDs:                 chatIDs,
		CreatedAt:               dbu.CreatedAt,
		UpdatedAt:               dbu.UpdatedAt,
	}
}
