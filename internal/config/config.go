package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	TokenStrategyPaseto = "paseto"
	TokenStrategyJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Email     EmailConfig
	OAuth     OAuthConfig
	Storage   StorageConfig
	Avatar    AvatarConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth
	// Origin is where the browser lands after the Google flow, success or not
	Origin string
	// VerifiedRedirectURL is where the browser lands after clicking the verification link
	VerifiedRedirectURL string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// TokenStrategy selects the verification token format: paseto or jwt
	TokenStrategy string
	// TokenSecret signs verification tokens (must be 32 bytes for paseto v4.local)
	TokenSecret          []byte
	SessionMaxAge        time.Duration
	VerificationTokenTTL time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	PublicURL    string // URL of this API, used to build verification links
	FrontendURL  string // Frontend URL for password reset links
}

// OAuthConfig holds the Google client settings
type OAuthConfig struct {
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string        `env:"GOOGLE_REDIRECT_URI"`
	GoogleAuthURL      string        `env:"GOOGLE_AUTH_URL"      envDefault:"https://accounts.google.com/o/oauth2/auth"`
	GoogleTokenURL     string        `env:"GOOGLE_TOKEN_URL"     envDefault:"https://oauth2.googleapis.com/token"`
	GoogleUserInfoURL  string        `env:"GOOGLE_USERINFO_URL"  envDefault:"https://www.googleapis.com/oauth2/v1/userinfo"`
	GoogleScopes       []string      `env:"GOOGLE_SCOPES"        envSeparator:"," envDefault:"openid,email,profile"`
	HTTPTimeout        time.Duration `env:"OAUTH_HTTP_TIMEOUT"   envDefault:"10s"`
	StateTTL           time.Duration `env:"OAUTH_STATE_TTL"      envDefault:"10m"`
}

// Enabled reports whether Google login is configured
func (c *OAuthConfig) Enabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

// StorageConfig describes the S3 compatible bucket that stores avatars
type StorageConfig struct {
	Region       string `env:"S3_REGION"        envDefault:"us-east-1"`
	Bucket       string `env:"S3_BUCKET"`
	AccessKey    string `env:"S3_ACCESS_KEY"`
	SecretKey    string `env:"S3_SECRET_KEY"`
	BaseEndpoint string `env:"S3_BASE_ENDPOINT"` // set for MinIO
	PublicURL    string `env:"S3_PUBLIC_URL"`    // prefix for object URLs handed to clients
	KeyPrefix    string `env:"S3_KEY_PREFIX"    envDefault:"avatars/"`
}

// Enabled reports whether avatar uploads have somewhere to go
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// AvatarConfig tunes the background avatar import queue
type AvatarConfig struct {
	Workers      int           `env:"AVATAR_WORKERS"       envDefault:"2"`
	QueueSize    int           `env:"AVATAR_QUEUE_SIZE"    envDefault:"100"`
	MaxAttempts  int           `env:"AVATAR_MAX_ATTEMPTS"  envDefault:"3"`
	RetryBackoff time.Duration `env:"AVATAR_RETRY_BACKOFF" envDefault:"2s"`
	FetchRate    float64       `env:"AVATAR_FETCH_RATE"    envDefault:"5"`
	FetchTimeout time.Duration `env:"AVATAR_FETCH_TIMEOUT" envDefault:"10s"`
	MaxBytes     int64         `env:"AVATAR_MAX_BYTES"     envDefault:"5242880"`
}

// RateLimitConfig bounds per-IP auth traffic and verification mail frequency
type RateLimitConfig struct {
	IPRequests    int64         `env:"RATE_LIMIT_IP_REQUESTS" envDefault:"10"`
	IPWindow      time.Duration `env:"RATE_LIMIT_IP_WINDOW"   envDefault:"15m"`
	EmailCooldown time.Duration `env:"EMAIL_COOLDOWN"         envDefault:"2m"`
	// TrustedProxies lists the CIDRs whose X-Forwarded-For and X-Real-IP headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:                getEnv("SERVER_PORT", "8080"),
			Env:                 getEnv("APP_ENV", "dev"),
			ReadTimeout:         getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:        getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout:     getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:      getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:5173"}),
			Origin:              getEnv("ORIGIN", "http://localhost:5173"),
			VerifiedRedirectURL: getEnv("REDIRECT_URL", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "chatbot"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenStrategy:        strings.ToLower(getEnv("TOKEN_STRATEGY", TokenStrategyPaseto)),
			TokenSecret:          []byte(getEnv("TOKEN_SECRET", "")),
			SessionMaxAge:        getHoursEnv("COOKIE_AGE", 72*time.Hour),
			VerificationTokenTTL: getDurationEnv("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			PublicURL:    getEnv("PUBLIC_URL", "http://localhost:8080"),
			FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
	}

	if err := env.Parse(&cfg.OAuth); err != nil {
		return nil, fmt.Errorf("failed to parse oauth config: %w", err)
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	if err := env.Parse(&cfg.Avatar); err != nil {
		return nil, fmt.Errorf("failed to parse avatar config: %w", err)
	}
	if err := env.Parse(&cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.TokenStrategy {
	case TokenStrategyPaseto:
		// v4.local needs a 32 byte symmetric key
		if len(c.Auth.TokenSecret) != 32 {
			return fmt.Errorf("TOKEN_SECRET must be exactly 32 bytes for paseto, got %d", len(c.Auth.TokenSecret))
		}
	case TokenStrategyJWT:
		if len(c.Auth.TokenSecret) < 32 {
			return fmt.Errorf("TOKEN_SECRET must be at least 32 bytes for jwt, got %d", len(c.Auth.TokenSecret))
		}
	default:
		return fmt.Errorf("unknown TOKEN_STRATEGY %q", c.Auth.TokenStrategy)
	}

	if c.Auth.SessionMaxAge <= 0 {
		return fmt.Errorf("COOKIE_AGE must be positive")
	}
	if c.RateLimit.IPRequests < 1 || c.RateLimit.IPWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_IP_REQUESTS and RATE_LIMIT_IP_WINDOW must be positive")
	}
	if c.Avatar.Workers < 1 {
		return fmt.Errorf("AVATAR_WORKERS must be at least 1")
	}
	if c.Avatar.MaxAttempts < 1 {
		return fmt.Errorf("AVATAR_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getDurationEnv reads a number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

// getHoursEnv reads a number of hours; COOKIE_AGE has always been expressed in hours
func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	hours, err := strconv.ParseFloat(value, 64)
	if err != nil || hours <= 0 {
		return defaultValue
	}

	return time.Duration(hours * float64(time.Hour))
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
