package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/httputil"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey ContextKey = "user_id"
	UserContextKey   ContextKey = "user"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	sessions *SessionService
}

func NewMiddleware(sessions *SessionService) *Middleware {
	return &Middleware{sessions: sessions}
}

// RequireSession lets the request through only with a live sid cookie
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		sessionID, err := GetSessionIDFromCookie(r)
		if err != nil || sessionID == "" {
			httputil.RespondErrorWithCode(w, "No session found!", httputil.CodeMissingSession, http.StatusUnauthorized)
			return
		}

		u, err := m.sessions.Resolve(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				httputil.RespondErrorWithCode(w, "No session found!", httputil.CodeSessionInvalid, http.StatusUnauthorized)
				return
			}
			logger.Error("failed to resolve session", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to resolve session", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, u *user.User) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, u.ID)
	return context.WithValue(ctx, UserContextKey, u)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetUserFromContext extracts the user loaded by RequireSession
func GetUserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}
