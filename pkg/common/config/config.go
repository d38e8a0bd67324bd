package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2/spotify"
)

// State store kinds accepted in STATE_STORE.
const (
	StoreCookie = "cookie"
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the immutable runtime configuration shared by every handler.
// Build it once with Load and pass it by value.
type Config struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET" validate:"required"`
	AuthURL      string `env:"SPOTIFY_AUTH_URL" validate:"required,url"`
	TokenURL     string `env:"SPOTIFY_TOKEN_URL" validate:"required,url"`

	// Port is both the listen port and, when PublicURL is empty, the port
	// appended to self-referencing URLs.
	Port            string        `env:"PORT"`
	PublicURL       string        `env:"PUBLIC_URL" validate:"omitempty,url"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"true"`
	ValidReturnURLs []string      `env:"VALID_RETURN_URLS" envSeparator:"," validate:"dive,url"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	StateTTL        time.Duration `env:"STATE_TTL" envDefault:"10m" validate:"gt=0"`
	CookieSecret    string        `env:"COOKIE_SECRET"`
	StateStore      string        `env:"STATE_STORE" envDefault:"cookie" validate:"oneof=cookie memory sqlite redis"`
	StateSQLitePath string        `env:"STATE_SQLITE_PATH" envDefault:"./state.db"`
	RedisURL        string        `env:"REDIS_URL" validate:"required_if=StateStore redis"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// LoadEnvFile loads variables from an env file without overriding ones that
// are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	cfg := Config{
		AuthURL:  spotify.Endpoint.AuthURL,
		TokenURL: spotify.Endpoint.TokenURL,
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required credentials and URL shaped settings.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsAllowedReturnURL reports whether u is in the static allow-list.
// Matching is exact; no normalisation is applied.
func (c Config) IsAllowedReturnURL(u string) bool {
	for _, allowed := range c.ValidReturnURLs {
		if allowed == u {
			return true
		}
	}
	return false
}
