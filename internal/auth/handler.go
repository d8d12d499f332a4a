package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/chatbot-auth/internal/httputil"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/ratelimit"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

// RateLimiter is the part of ratelimit.Limiter the handlers use
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

var _ RateLimiter = (*ratelimit.Limiter)(nil)

// HandlerConfig carries the redirect targets and cookie policy
type HandlerConfig struct {
	IsProduction bool
	// Origin receives the browser after the Google flow, whatever the outcome
	Origin string
	// VerifiedRedirectURL receives the browser after a successful email verification
	VerifiedRedirectURL string
	OAuthStateTTL       time.Duration
	VerificationTTL     time.Duration
	// TrustedProxies may report the client address in forwarding headers
	TrustedProxies []netip.Prefix
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	cfg         HandlerConfig
}

func NewHandler(service *Service, rateLimiter RateLimiter, cfg HandlerConfig) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		cfg:         cfg,
	}
}

// CredentialsRequest represents the register and login request body
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UsernameRequest represents the username availability request body
type UsernameRequest struct {
	Username string `json:"username"`
}

// EmailRequest carries a single email address
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MeResponse is returned by Me
type MeResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	User    *user.User `json:"user"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a local account with email and password. The first chat is created with it.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Registration credentials"
// @Success      201 {object} httputil.DetailsResponse
// @Failure      400 {object} httputil.DetailsResponse "Missing or invalid fields"
// @Failure      409 {object} httputil.DetailsResponse "Email already exists"
// @Failure      429 {object} httputil.DetailsResponse
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowIP(w, r, "register") {
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			respondError(w, "email or password is missing!", httputil.CodeMissingCredentials, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			respondError(w, "invalid email format!", httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists!", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "Error registering!", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)
	httputil.RespondDetails(w, "Registered Successfully!", http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Check local credentials and set the sid session cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Login credentials"
// @Success      200 {object} httputil.DetailsResponse
// @Failure      401 {object} httputil.DetailsResponse "Wrong password"
// @Failure      404 {object} httputil.DetailsResponse "No user found"
// @Failure      409 {object} httputil.DetailsResponse "Account uses Google sign-in"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowIP(w, r, "login") {
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			respondError(w, "email or password is missing!", httputil.CodeMissingCredentials, http.StatusBadRequest)
		case errors.Is(err, user.ErrNotFound):
			logger.Warn("login failed: no such user")
			respondError(w, "No user found!", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: wrong password")
			respondError(w, "Wrong password!", httputil.CodeWrongPassword, http.StatusUnauthorized)
		case errors.Is(err, ErrExternalAccount):
			logger.Warn("login failed: external account")
			respondError(w, "This account uses Google sign-in!", httputil.CodeExternalAccount, http.StatusConflict)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in successfully", "user_id", session.UserID)

	SetSessionCookie(w, session, h.cfg.IsProduction)
	httputil.RespondDetails(w, "Login Success!", http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Destroy the server session and clear the sid cookie
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.DetailsResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if sessionID, err := GetSessionIDFromCookie(r); err == nil {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// Continue - still clear cookies
			logger.Warn("failed to destroy session", "error", err)
		}
	}

	ClearSessionCookie(w, h.cfg.IsProduction)

	logger.Info("user logged out successfully")
	httputil.RespondDetails(w, "Logout Success!", http.StatusOK)
}

// Me returns the logged in user
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200 {object} MeResponse
// @Failure      401 {object} httputil.DetailsResponse
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	// RequireSession already loaded the account
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		respondError(w, "No session found!", httputil.CodeMissingSession, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, MeResponse{
		Success: true,
		Message: "User details fetched successfully!",
		User:    u,
	}, http.StatusOK)
}

// CheckUsername reports whether a username is free
// @Summary      Username availability
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body UsernameRequest true "Username"
// @Success      200 {object} httputil.DetailsResponse "Available"
// @Failure      409 {object} httputil.DetailsResponse "Taken"
// @Router       /auth/username [post]
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req UsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	available, err := h.service.UsernameAvailable(r.Context(), req.Username)
	if err != nil {
		logger.Error("username check failed", "error", err.Error())
		respondError(w, "failed to check username", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if !available {
		respondError(w, "Username already exists!", httputil.CodeUsernameTaken, http.StatusConflict)
		return
	}

	httputil.RespondDetails(w, "Username is available!", http.StatusOK)
}

// RequestVerification mails a verification link
// @Summary      Request email verification
// @Description  Sends a verification link and mirrors the token in the token cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.DetailsResponse
// @Failure      404 {object} httputil.DetailsResponse "No user found"
// @Failure      409 {object} httputil.DetailsResponse "Already verified"
// @Failure      429 {object} httputil.DetailsResponse
// @Router       /auth/verify-email [post]
func (h *Handler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !h.allowIP(w, r, "verify-email") || !h.allowEmail(w, r, req.Email) {
		return
	}

	token, err := h.service.RequestVerification(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			respondError(w, "No user found! Please send valid email", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrEmailAlreadyVerified):
			respondError(w, "Email already verified!", httputil.CodeAlreadyVerified, http.StatusConflict)
		default:
			logger.Error("verification request failed", "error", err.Error())
			respondError(w, "failed to send verification email", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.startEmailCooldown(r, req.Email)
	SetVerificationCookie(w, token, h.cfg.VerificationTTL, h.cfg.IsProduction)
	httputil.RespondDetails(w, "Verification Email Sent!", http.StatusOK)
}

// VerifyEmail consumes the token from the emailed link
// @Summary      Verify email address
// @Description  Marks the account verified and redirects to the app. A token works once.
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      302
// @Failure      400 {object} httputil.DetailsResponse "Invalid or expired token"
// @Failure      409 {object} httputil.DetailsResponse "Token already used"
// @Router       /auth/verify/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, "verification token required", httputil.CodeVerificationMissing, http.StatusBadRequest)
		return
	}

	verified, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			logger.Warn("email verification failed: token expired")
			respondError(w, "Verification link has expired. Please request a new one.", httputil.CodeTokenExpired, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidToken):
			logger.Warn("email verification failed: invalid token")
			respondError(w, "Invalid verification token.", httputil.CodeInvalidToken, http.StatusBadRequest)
		case errors.Is(err, ErrTokenAlreadyUsed):
			logger.Warn("email verification failed: token reused")
			respondError(w, "This verification link was already used.", httputil.CodeTokenAlreadyUsed, http.StatusConflict)
		case errors.Is(err, user.ErrNotFound):
			respondError(w, "No user found!", httputil.CodeUserNotFound, http.StatusNotFound)
		default:
			logger.Error("email verification failed: internal error", "error", err.Error())
			respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("email verified", "user_id", verified.ID)

	ClearVerificationCookie(w, h.cfg.IsProduction)
	http.Redirect(w, r, h.cfg.VerifiedRedirectURL, http.StatusFound)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link to the user's email. Always returns success to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.DetailsResponse
// @Failure      400 {object} httputil.DetailsResponse "Invalid request body"
// @Failure      429 {object} httputil.DetailsResponse "Too many requests"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !h.allowIP(w, r, "forgot-password") || !h.allowEmail(w, r, req.Email) {
		return
	}

	// Process request (always returns nil for security)
	_ = h.service.RequestPasswordReset(r.Context(), req.Email)
	// unknown addresses cool down too, otherwise a 429 would reveal which accounts exist
	h.startEmailCooldown(r, req.Email)

	httputil.RespondDetails(w, "If an account exists with that email, a password reset link has been sent.", http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Reset a user's password using a valid reset token. Every session of the user is closed.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.DetailsResponse
// @Failure      400 {object} httputil.DetailsResponse "Invalid request or token"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordResetTokenNotFound):
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case errors.Is(err, ErrMissingCredentials):
			respondError(w, "password is missing!", httputil.CodeMissingCredentials, http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset successfully")
	httputil.RespondDetails(w, "Password reset successfully. You can now login with your new password.", http.StatusOK)
}

// GoogleLogin starts the Google flow
// @Summary      Sign in with Google
// @Tags         auth
// @Success      307
// @Failure      404 {object} httputil.DetailsResponse "Google login not configured"
// @Router       /auth/google [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	state, err := generateRandomToken()
	if err != nil {
		logger.Error("failed to generate oauth state", "error", err.Error())
		respondError(w, "failed to start google login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	authURL, err := h.service.GoogleAuthURL(state)
	if err != nil {
		respondError(w, "Google login is not configured", httputil.CodeOAuthDisabled, http.StatusNotFound)
		return
	}

	SetOAuthStateCookie(w, state, h.cfg.OAuthStateTTL, h.cfg.IsProduction)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the Google flow. The browser always lands on the
// origin; the sid cookie is only set when a session was created.
// @Summary      Google OAuth callback
// @Tags         auth
// @Param        code  query string true "Authorization code"
// @Param        state query string true "State issued by /auth/google"
// @Success      302
// @Router       /auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	expectedState := PopOAuthStateCookie(w, r, h.cfg.IsProduction)
	state := r.URL.Query().Get("state")
	if expectedState == "" || state != expectedState {
		logger.Warn("google callback rejected: state mismatch")
		http.Redirect(w, r, h.cfg.Origin, http.StatusFound)
		return
	}

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		logger.Warn("google callback rejected by provider", "error", providerErr)
		http.Redirect(w, r, h.cfg.Origin, http.StatusFound)
		return
	}

	session, result, err := h.service.LoginWithGoogle(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		switch {
		case errors.Is(err, ErrIdentityConflict):
			logger.Warn("google login rejected: email belongs to another sign-in method")
		case errors.Is(err, ErrUpstream):
			logger.Warn("google login failed upstream", "error", err.Error())
		default:
			logger.Error("google login failed", "error", err.Error())
		}
		http.Redirect(w, r, h.cfg.Origin, http.StatusFound)
		return
	}

	logger.Info("google login succeeded", "user_id", session.UserID, "status", result.Status)

	SetSessionCookie(w, session, h.cfg.IsProduction)
	http.Redirect(w, r, h.cfg.Origin, http.StatusFound)
}

// allowIP applies the IP budget for purpose and answers 429 when it is spent.
// Limiter failures let the request through.
func (h *Handler) allowIP(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := clientIP(r, h.cfg.TrustedProxies)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return true
}

// allowEmail answers 429 while the address is on cooldown
func (h *Handler) allowEmail(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return true
	}
	if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return false
	}
	return true
}

// startEmailCooldown is called once a mail has actually been queued
func (h *Handler) startEmailCooldown(r *http.Request, email string) {
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to set email cooldown", "error", err.Error())
	}
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, details string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, details, code, statusCode)
}
