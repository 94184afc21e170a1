package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	ProviderSteam = "steam"
	ProviderOIDC  = "oidc"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080" validate:"required"`

	// BaseURL is the public origin of the site. ReturnURL and Realm are
	// derived from it when not set explicitly.
	BaseURL   string `env:"BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	ReturnURL string `env:"EXTERNAL_RETURN_URL" validate:"omitempty,url"`
	Realm     string `env:"SITE_REALM" validate:"omitempty,url"`

	Provider        string        `env:"AUTH_PROVIDER" envDefault:"steam" validate:"oneof=steam oidc"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	LoginTimeout    time.Duration `env:"LOGIN_TIMEOUT" envDefault:"15s" validate:"gt=0"`

	SteamAPIKey string `env:"STEAM_API_KEY" validate:"required_if=Provider steam"`

	OIDCIssuer       string `env:"OIDC_ISSUER" validate:"required_if=Provider oidc"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID" validate:"required_if=Provider oidc"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`

	SessionSecret      string        `env:"SESSION_SECRET" validate:"required,min=32"`
	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h" validate:"gt=0"`
	SessionAbsoluteTTL time.Duration `env:"SESSION_ABSOLUTE_TTL" envDefault:"168h" validate:"gtefield=SessionIdleTTL"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" validate:"required"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Production enforces secure cookies and hides failure reasons.
	Production bool `env:"PRODUCTION" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from the environment and fills derived
// fields. It does not validate; call Validate before serving traffic.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ReturnURL == "" {
		cfg.ReturnURL = cfg.BaseURL + "/auth/" + cfg.Provider + "/return"
	}
	if cfg.Realm == "" {
		cfg.Realm = cfg.BaseURL
	}

	return cfg, nil
}

// Validate checks everything the HTTP server needs.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !strings.HasPrefix(c.ReturnURL, c.Realm) {
		return fmt.Errorf("invalid config: return url %q is outside realm %q", c.ReturnURL, c.Realm)
	}
	return nil
}

// ValidateStore checks only the storage settings, for admin tooling that
// never talks to the identity provider.
func (c Config) ValidateStore() error {
	v := validator.New()
	if err := v.StructPartial(c, "DatabaseDriver", "DatabaseDSN"); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
