package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	AppName  string `env:"APP_NAME" envDefault:"Authflow" validate:"required"`

	// PublicBaseURL is where the client app lives; email links point at it.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000" validate:"required,url"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" validate:"oneof=postgres memory"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret   string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" envDefault:"24h" validate:"min=1m"`
	AdminSecret string        `env:"ADMIN_SECRET"`

	Auth AuthConfig `envPrefix:"AUTH_"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"10" validate:"min=4,max=31"`

	ResendAPIKey  string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	EmailFrom     string `env:"EMAIL_FROM_EMAIL" validate:"required_if=Env production,required_if=Env staging"`
	EmailFromName string `env:"EMAIL_FROM_NAME"`

	RateLimitPerMinute int `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"20" validate:"min=0"`
	RateLimitBurst     int `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10" validate:"min=0"`

	PurgeCron           string        `env:"PURGE_CRON" envDefault:"0 3 * * *" validate:"required"`
	UnverifiedRetention time.Duration `env:"UNVERIFIED_RETENTION" envDefault:"720h"`

	Google   SocialProvider `envPrefix:"GOOGLE_"`
	Facebook SocialProvider `envPrefix:"FACEBOOK_"`
	LinkedIn SocialProvider `envPrefix:"LINKEDIN_"`
}

type AuthConfig struct {
	RequireUserVerify bool          `env:"REQUIRE_USER_VERIFY" envDefault:"true"`
	MinPasswordLength int           `env:"MIN_PASSWORD_LENGTH" envDefault:"6" validate:"min=1,max=72"`
	VerifyTokenLength int           `env:"VERIFY_TOKEN_LENGTH" envDefault:"20" validate:"min=8,max=128"`
	VerifyTokenTTL    time.Duration `env:"VERIFY_TOKEN_TTL" envDefault:"48h"`
	AdminTokenLength  int           `env:"ADMIN_TOKEN_LENGTH" envDefault:"16" validate:"min=8,max=128"`
}

// SocialProvider holds OAuth client credentials. The auth workflow does not
// use them; they only decide which providers are advertised to clients.
type SocialProvider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" validate:"omitempty,url"`
}

func (p SocialProvider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SocialProviders returns the names of providers with complete credentials.
func (c *Config) SocialProviders() []string {
	var names []string
	if c.Google.Enabled() {
		names = append(names, "google")
	}
	if c.Facebook.Enabled() {
		names = append(names, "facebook")
	}
	if c.LinkedIn.Enabled() {
		names = append(names, "linkedin")
	}
	return names
}
