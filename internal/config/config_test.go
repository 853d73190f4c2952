package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/transit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, devSecret, cfg.JWTSecret)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:5173")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsDevSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/transit")
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-secret", cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db:5432/transit")
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "30")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("ALLOWED_ORIGINS", "https://transit.campus.edu")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30, cfg.RateLimitRPM)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, []string{"https://transit.campus.edu"}, cfg.AllowedOrigins)
}

func TestLoadIgnoresBadPortValue(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/transit")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}
