package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtVerificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTSigner signs verification tokens as HS256 JWTs
type JWTSigner struct {
	secret []byte
	now    func() time.Time
}

func NewJWTSigner(secret []byte) (*JWTSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}

	return &JWTSigner{secret: secret, now: time.Now}, nil
}

func (s *JWTSigner) Sign(email string, duration time.Duration) (string, error) {
	now := s.now()
	claims := jwtVerificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTSigner) Verify(tokenStr string) (*VerificationClaims, error) {
	claims := &jwtVerificationClaims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, ErrInvalidToken
	}

	result := &VerificationClaims{
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	return result, nil
}
