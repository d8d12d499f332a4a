package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/chatbot-auth/internal/user"
)

func TestRequireSession_PutsUserInContext(t *testing.T) {
	f := newServiceFixture(t)
	u := f.users.add(&user.User{Email: "a@x.com", Username: "a", Method: user.MethodLocal})

	session, err := f.sessions.Create(context.Background(), u.ID)
	require.NoError(t, err)

	var got *user.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = GetUserFromContext(r.Context())
		require.True(t, ok)

		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, u.ID, id)
	})

	cookieRec := httptest.NewRecorder()
	SetSessionCookie(cookieRec, session, false)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookieRec.Result().Cookies()[0])
	rec := httptest.NewRecorder()
	NewMiddleware(f.sessions).RequireSession(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "a@x.com", got.Email)
}

func TestGetUserFromContext_Empty(t *testing.T) {
	_, ok := GetUserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = GetUserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestHandler_MeWithoutMiddleware(t *testing.T) {
	h := NewHandler(nil, nil, HandlerConfig{})

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
