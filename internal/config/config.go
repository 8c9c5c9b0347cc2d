package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"Stellar"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppURL   string `env:"APP_URL" envDefault:"http://localhost:5173"`
	Port     string `env:"PORT" envDefault:"5001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret        string        `env:"JWT_SECRET"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	OTPTTL           time.Duration `env:"OTP_TTL" envDefault:"10m"`
	TrustedDeviceTTL time.Duration `env:"TRUSTED_DEVICE_TTL" envDefault:"720h"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	ShutdownPeriod   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Mail      MailConfig
	Chat      ChatConfig
	Google    GoogleConfig
	SentryDSN string `env:"SENTRY_DSN"`
}

// MailConfig configures outbound OTP delivery. An empty Host selects the log mailer.
type MailConfig struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"MAIL_FROM" envDefault:"no-reply@stellar.local"`
	Timeout  time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
}

// ChatConfig configures the chat directory sync. An empty APIKey disables it.
type ChatConfig struct {
	APIKey    string        `env:"STREAM_API_KEY"`
	APISecret string        `env:"STREAM_API_SECRET"`
	BaseURL   string        `env:"STREAM_BASE_URL" envDefault:"https://chat.stream-io-api.com"`
	Timeout   time.Duration `env:"CHAT_SYNC_TIMEOUT" envDefault:"5s"`
}

// GoogleConfig configures the federated identity provider. An empty ClientID disables it.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:5001/api/auth/federated/callback"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.OTPTTL <= 0 {
		return Config{}, fmt.Errorf("OTP_TTL must be positive")
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev-only-secret"
		}
		return cfg, nil
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction gates the Secure cookie attribute.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
