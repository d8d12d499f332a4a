package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/chatbot-auth/internal/auth"
	"github.com/redmonkez12/chatbot-auth/internal/chat"
	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/httputil"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth           *auth.Handler
	Chat           *chat.Handler
	AuthMiddleware *auth.Middleware
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first. Cookies only travel with AllowCredentials.
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders(!cfg.Server.IsDevelopment()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)
		r.Post("/username", h.Auth.CheckUsername)
		r.Post("/verify-email", h.Auth.RequestVerification)
		r.Get("/verify/{token}", h.Auth.VerifyEmail)
		r.Post("/forgot-password", h.Auth.ForgotPassword)
		r.Post("/reset-password", h.Auth.ResetPassword)
		r.Get("/google", h.Auth.GoogleLogin)
		r.Get("/google/callback", h.Auth.GoogleCallback)

		r.With(h.AuthMiddleware.RequireSession).Get("/me", h.Auth.Me)
	})

	r.Route("/chats", func(r chi.Router) {
		r.Use(h.AuthMiddleware.RequireSession)
		r.Get("/", h.Chat.List)
		r.Post("/new", h.Chat.NewChat)
		r.Post("/{chatID}/messages", h.Chat.AddMessage)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
