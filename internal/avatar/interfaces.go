package avatar

import (
	"context"

	"github.com/google/uuid"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/avatar_mock.go -package=mock

// ObjectStore stores a blob and returns its public URL
type ObjectStore interface {
	Upload(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// AvatarUpdater records the stored avatar on the account
type AvatarUpdater interface {
	UpdateAvatarURL(ctx context.Context, userID uuid.UUID, avatarURL string) error
}
