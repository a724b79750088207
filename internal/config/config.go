package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                      int    `env:"PORT" envDefault:"3000"`
	LogLevel                  string `env:"LOG_LEVEL" envDefault:"info"`
	Version                   string `env:"APP_VERSION" envDefault:"1.0.0"`
	AuthDir                   string `env:"AUTH_DIR" envDefault:"./auth_info"`
	CredentialsDatabaseURL    string `env:"CREDENTIALS_DATABASE_URL"`
	StatusFile                string `env:"STATUS_FILE" envDefault:"./session_status.json"`
	RedisURL                  string `env:"REDIS_URL"`
	AutoActivate              bool   `env:"AUTO_ACTIVATE" envDefault:"true"`
	MaxQRAttempts             int    `env:"MAX_QR_ATTEMPTS" envDefault:"3"`
	PairingCodeTTLSeconds     int    `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"600"`
	DeterministicDisplayCodes bool   `env:"DETERMINISTIC_DISPLAY_CODES" envDefault:"true"`
	DefaultRegion             string `env:"DEFAULT_REGION"`
	GenerateRateLimit         int    `env:"GENERATE_RATE_LIMIT" envDefault:"10"`
	BrowserName               string `env:"BROWSER_NAME" envDefault:"Chrome"`
}

func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.MaxQRAttempts <= 0 {
		return fmt.Errorf("MAX_QR_ATTEMPTS must be positive, got %d", c.MaxQRAttempts)
	}
	if c.PairingCodeTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_CODE_TTL_SECONDS must be positive, got %d", c.PairingCodeTTLSeconds)
	}
	if c.DefaultRegion != "" && len(c.DefaultRegion) != 2 {
		return fmt.Errorf("DEFAULT_REGION must be a two-letter region code, got %q", c.DefaultRegion)
	}
	if c.CredentialsDatabaseURL != "" && !strings.HasPrefix(c.CredentialsDatabaseURL, "postgres") {
		return fmt.Errorf("CREDENTIALS_DATABASE_URL must be a postgres URL")
	}
	if c.RedisURL == "" {
		log.Info().Msg("REDIS_URL is empty: rate limiting uses the in-process limiter")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.DefaultRegion = strings.ToUpper(strings.TrimSpace(cfg.DefaultRegion))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
