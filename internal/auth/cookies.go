package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName      = "sid"
	VerificationCookieName = "token"
	OAuthStateCookieName   = "oauth_state"
)

// cookieBase holds the flags every auth cookie shares. Production serves the
// frontend from another site, so cookies must be SameSite=None and Secure there.
func cookieBase(name, value string, isProduction bool) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if isProduction {
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: sameSite,
	}
}

// SetSessionCookie hands the session id to the browser
func SetSessionCookie(w http.ResponseWriter, session *Session, isProduction bool) {
	c := cookieBase(SessionCookieName, session.ID, isProduction)
	c.Expires = session.ExpiresAt
	c.MaxAge = int(session.MaxAge.Seconds())
	http.SetCookie(w, c)
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, isProduction bool) {
	clearCookie(w, SessionCookieName, isProduction)
}

// GetSessionIDFromCookie reads the session id
func GetSessionIDFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// SetVerificationCookie mirrors the verification token into a cookie
func SetVerificationCookie(w http.ResponseWriter, token string, ttl time.Duration, isProduction bool) {
	c := cookieBase(VerificationCookieName, token, isProduction)
	c.Expires = time.Now().Add(ttl)
	http.SetCookie(w, c)
}

// ClearVerificationCookie drops the verification cookie once it has been used
func ClearVerificationCookie(w http.ResponseWriter, isProduction bool) {
	clearCookie(w, VerificationCookieName, isProduction)
}

// SetOAuthStateCookie stores the state value sent to the provider.
// Lax is required: the callback is a top-level cross-site navigation.
func SetOAuthStateCookie(w http.ResponseWriter, state string, ttl time.Duration, isProduction bool) {
	c := cookieBase(OAuthStateCookieName, state, isProduction)
	c.Path = "/auth/google"
	c.SameSite = http.SameSiteLaxMode
	c.MaxAge = int(ttl.Seconds())
	http.SetCookie(w, c)
}

// PopOAuthStateCookie returns the stored state and clears the cookie
func PopOAuthStateCookie(w http.ResponseWriter, r *http.Request, isProduction bool) string {
	c, err := r.Cookie(OAuthStateCookieName)
	if err != nil {
		return ""
	}

	expired := cookieBase(OAuthStateCookieName, "", isProduction)
	expired.Path = "/auth/google"
	expired.SameSite = http.SameSiteLaxMode
	expired.MaxAge = -1
	http.SetCookie(w, expired)

	return c.Value
}

func clearCookie(w http.ResponseWriter, name string, isProduction bool) {
	c := cookieBase(name, "", isProduction)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}
