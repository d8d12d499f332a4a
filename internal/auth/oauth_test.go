package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

type fakeGoogle struct {
	tokenStatus    int
	userInfoStatus int
	profile        map[string]string
	gotCode        string
	gotClientID    string
	gotAuth        string
}

func (g *fakeGoogle) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		g.gotCode = r.PostForm.Get("code")
		g.gotClientID = r.PostForm.Get("client_id")

		w.Header().Set("Content-Type", "application/json")
		if g.tokenStatus != 0 {
			w.WriteHeader(g.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"google-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		g.gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		if g.userInfoStatus != 0 {
			w.WriteHeader(g.userInfoStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(g.profile)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srvURL string) *GoogleProvider {
	return NewGoogleProvider(config.OAuthConfig{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURI:  "http://localhost:8080/auth/google/callback",
		GoogleAuthURL:      srvURL + "/auth",
		GoogleTokenURL:     srvURL + "/token",
		GoogleUserInfoURL:  srvURL + "/userinfo",
		GoogleScopes:       []string{"openid", "email", "profile"},
		HTTPTimeout:        5 * time.Second,
	})
}

func TestGoogleProvider_Exchange(t *testing.T) {
	g := &fakeGoogle{profile: map[string]string{
		"email":       "g@example.com",
		"name":        "Grace Hopper",
		"given_name":  "Grace",
		"family_name": "Hopper",
		"picture":     "https://lh3.googleusercontent.com/a/photo",
	}}
	p := newTestGoogleProvider(g.server(t).URL)

	profile, err := p.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "auth-code", g.gotCode)
	assert.Equal(t, "client-id", g.gotClientID)
	assert.Equal(t, "Bearer google-access", g.gotAuth)

	assert.Equal(t, &OAuthProfile{
		Email:      "g@example.com",
		Name:       "Grace Hopper",
		GivenName:  "Grace",
		FamilyName: "Hopper",
		Picture:    "https://lh3.googleusercontent.com/a/photo",
	}, profile)
}

func TestGoogleProvider_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name   string
		google *fakeGoogle
		code   string
	}{
		{name: "missing code", google: &fakeGoogle{}, code: ""},
		{name: "token rejected", google: &fakeGoogle{tokenStatus: http.StatusBadRequest}, code: "c"},
		{name: "userinfo error", google: &fakeGoogle{userInfoStatus: http.StatusUnauthorized}, code: "c"},
		{name: "no email", google: &fakeGoogle{profile: map[string]string{"name": "x"}}, code: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestGoogleProvider(tt.google.server(t).URL)

			_, err := p.Exchange(context.Background(), tt.code)
			assert.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := newTestGoogleProvider("https://accounts.example")

	raw := p.AuthCodeURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/auth", u.Path)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, user.MethodGoogle, p.Method())
}
