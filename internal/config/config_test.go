package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_URL", "http://localhost:5173/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Stellar", cfg.AppName)
	assert.Equal(t, ":5001", cfg.Address())
	assert.Equal(t, "http://localhost:5173", cfg.AppURL)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.TrustedDeviceTTL)
	assert.Equal(t, 10*time.Second, cfg.Mail.Timeout)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.IsProduction())
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/stellar")
	_, err = Load()
	require.ErrorContains(t, err, "REDIS_URL")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadParsesDurations(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("PORT", ":9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, ":9000", cfg.Address())

	t.Setenv("OTP_TTL", "soon")
	_, err = Load()
	require.Error(t, err)
}
