package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redmonkez12/chatbot-auth/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// VerificationClaims is what a verification token carries
type VerificationClaims struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenSigner signs and checks email verification tokens.
// Implementations include PasetoSigner (PASETO v4.local) and JWTSigner (HS256).
type TokenSigner interface {
	Sign(email string, duration time.Duration) (string, error)
	Verify(tokenStr string) (*VerificationClaims, error)
}

// NewTokenSigner picks the signer for the configured strategy
func NewTokenSigner(strategy string, secret []byte) (TokenSigner, error) {
	switch strategy {
	case config.TokenStrategyPaseto:
		return NewPasetoSigner(secret)
	case config.TokenStrategyJWT:
		return NewJWTSigner(secret)
	default:
		return nil, fmt.Errorf("unknown token strategy %q", strategy)
	}
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken keeps raw bearer values out of Redis keys
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
