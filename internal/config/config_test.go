package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("PairingCodeTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{PairingCodeTTLSeconds: 600}
		assert.Equal(t, 10*time.Minute, cfg.PairingCodeTTL())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{MaxQRAttempts: 3, PairingCodeTTLSeconds: 600}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects non-positive attempt cap", func(t *testing.T) {
		cfg := valid()
		cfg.MaxQRAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		cfg := valid()
		cfg.PairingCodeTTLSeconds = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects long region codes", func(t *testing.T) {
		cfg := valid()
		cfg.DefaultRegion = "KEN"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-postgres credentials database", func(t *testing.T) {
		cfg := valid()
		cfg.CredentialsDatabaseURL = "mysql://localhost/creds"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "LOG_LEVEL", "AUTH_DIR", "STATUS_FILE", "AUTO_ACTIVATE",
		"MAX_QR_ATTEMPTS", "PAIRING_CODE_TTL_SECONDS", "DEFAULT_REGION",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		for _, k := range keys {
			os.Unsetenv(k)
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "./auth_info", cfg.AuthDir)
		assert.Equal(t, "./session_status.json", cfg.StatusFile)
		assert.True(t, cfg.AutoActivate)
		assert.Equal(t, 3, cfg.MaxQRAttempts)
		assert.Equal(t, 600, cfg.PairingCodeTTLSeconds)
		assert.Empty(t, cfg.DefaultRegion)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("PORT", "8080")
		os.Setenv("AUTO_ACTIVATE", "false")
		os.Setenv("MAX_QR_ATTEMPTS", "5")
		os.Setenv("DEFAULT_REGION", " ke ")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.False(t, cfg.AutoActivate)
		assert.Equal(t, 5, cfg.MaxQRAttempts)
		assert.Equal(t, "KE", cfg.DefaultRegion)
	})

	t.Run("fails on malformed numbers", func(t *testing.T) {
		os.Setenv("PORT", "not-a-port")

		_, err := Load()
		assert.Error(t, err)
		os.Unsetenv("PORT")
	})

	t.Run("rejects values that fail validation", func(t *testing.T) {
		os.Setenv("MAX_QR_ATTEMPTS", "0")

		_, err := Load()
		assert.ErrorContains(t, err, "MAX_QR_ATTEMPTS")
		os.Unsetenv("MAX_QR_ATTEMPTS")
	})
}
