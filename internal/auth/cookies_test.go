package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSetSessionCookie(t *testing.T) {
	session := &Session{ID: "abc", ExpiresAt: time.Now().Add(time.Hour), MaxAge: time.Hour}

	tests := []struct {
		name         string
		isProduction bool
		wantSecure   bool
		wantSameSite http.SameSite
	}{
		{name: "dev", wantSameSite: http.SameSiteLaxMode},
		{name: "prod", isProduction: true, wantSecure: true, wantSameSite: http.SameSiteNoneMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SetSessionCookie(rec, session, tt.isProduction)

			c := responseCookie(t, rec, SessionCookieName)
			assert.Equal(t, "abc", c.Value)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, 3600, c.MaxAge)
			assert.Equal(t, tt.wantSecure, c.Secure)
			assert.Equal(t, tt.wantSameSite, c.SameSite)
		})
	}
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec, false)

	c := responseCookie(t, rec, SessionCookieName)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestGetSessionIDFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetSessionIDFromCookie(req)
	assert.ErrorIs(t, err, http.ErrNoCookie)

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-value"})
	id, err := GetSessionIDFromCookie(req)
	require.NoError(t, err)
	assert.Equal(t, "sid-value", id)
}

func TestOAuthStateCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetOAuthStateCookie(rec, "state-1", 10*time.Minute, true)

	set := responseCookie(t, rec, OAuthStateCookieName)
	assert.Equal(t, "/auth/google", set.Path)
	assert.Equal(t, http.SameSiteLaxMode, set.SameSite)
	assert.True(t, set.Secure)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	req.AddCookie(&http.Cookie{Name: OAuthStateCookieName, Value: "state-1"})
	rec = httptest.NewRecorder()

	assert.Equal(t, "state-1", PopOAuthStateCookie(rec, req, true))
	cleared := responseCookie(t, rec, OAuthStateCookieName)
	assert.Negative(t, cleared.MaxAge)

	empty := httptest.NewRecorder()
	assert.Empty(t, PopOAuthStateCookie(empty, httptest.NewRequest(http.MethodGet, "/", nil), true))
	assert.Empty(t, empty.Result().Cookies())
}
