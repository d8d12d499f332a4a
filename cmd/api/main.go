package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/chatbot-auth/internal/auth"
	"github.com/redmonkez12/chatbot-auth/internal/avatar"
	"github.com/redmonkez12/chatbot-auth/internal/chat"
	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/database"
	"github.com/redmonkez12/chatbot-auth/internal/email"
	httpServer "github.com/redmonkez12/chatbot-auth/internal/http"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/ratelimit"
	"github.com/redmonkez12/chatbot-auth/internal/storage"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

// @title           Chatbot Auth API
// @version         1.0
// @description     Accounts, sessions, email verification, Google sign-in and chat bootstrap for the chatbot.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name sid

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_strategy", cfg.Auth.TokenStrategy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, db, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, sqlDB); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := user.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	sessionRepo := auth.NewRedisSessionRepository(redisClient)
	passwordResetRepo := auth.NewPasswordResetRepository(redisClient)

	signer, err := auth.NewTokenSigner(cfg.Auth.TokenStrategy, cfg.Auth.TokenSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}

	hasher := auth.NewPasswordHasher()
	emailService := email.NewService(cfg.Email)
	rateLimiter := ratelimit.NewLimiter(redisClient,
		ratelimit.WithIPLimit(cfg.RateLimit.IPRequests, cfg.RateLimit.IPWindow),
		ratelimit.WithEmailCooldown(cfg.RateLimit.EmailCooldown),
	)
	trustedProxies, err := auth.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("failed to parse TRUSTED_PROXIES: %w", err)
	}

	chatService := chat.NewService(chatRepo, userRepo, logger)
	sessionService := auth.NewSessionService(sessionRepo, userRepo, cfg.Auth.SessionMaxAge)
	verificationService := auth.NewVerificationService(userRepo, signer, emailService, cfg.Auth.VerificationTokenTTL, logger)

	// Avatars are only imported when a bucket is configured
	var avatars auth.AvatarScheduler
	var importer *avatar.Importer
	if cfg.Storage.Enabled() {
		store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		importer = avatar.NewImporter(store, userRepo, cfg.Avatar, logger)
		importer.Start(context.Background())
		avatars = importer
	} else {
		logger.Warn("S3_BUCKET not set, provider avatars will not be imported")
	}

	var oauthProvider auth.OAuthProvider
	if cfg.OAuth.Enabled() {
		oauthProvider = auth.NewGoogleProvider(cfg.OAuth)
	} else {
		logger.Warn("Google OAuth not configured, /auth/google is disabled")
	}

	reconciler := auth.NewReconciler(userRepo, hasher, chatService, avatars, logger)

	authService := auth.NewService(
		userRepo,
		hasher,
		sessionService,
		verificationService,
		reconciler,
		oauthProvider,
		passwordResetRepo,
		chatService,
		emailService,
		logger,
	)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth: auth.NewHandler(authService, rateLimiter, auth.HandlerConfig{
			IsProduction:        !cfg.Server.IsDevelopment(),
			Origin:              cfg.Server.Origin,
			VerifiedRedirectURL: cfg.Server.VerifiedRedirectURL,
			OAuthStateTTL:       cfg.OAuth.StateTTL,
			VerificationTTL:     cfg.Auth.VerificationTokenTTL,
			TrustedProxies:      trustedProxies,
		}),
		Chat:           chat.NewHandler(chatService),
		AuthMiddleware: auth.NewMiddleware(sessionService),
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// requests are done, so nothing schedules imports anymore
	if importer != nil {
		if err := importer.Stop(shutdownCtx); err != nil {
			logger.Warn("avatar importer stopped before draining", "error", err)
		}
	}

	return nil
}

// initRedis connects to Redis and checks the connection
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
