package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvironmentVariablesDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, int64(100), cfg.RateLimitRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvironmentVariablesProductionRequiresOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "")

	_, err := LoadEnvironmentVariables()
	assert.Error(t, err)
}

func TestLoadEnvironmentVariablesParsesOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://focusroom.app, https://staging.focusroom.app")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://focusroom.app", "https://staging.focusroom.app"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoadEnvironmentVariablesRejectsBadRateLimit(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	_, err := LoadEnvironmentVariables()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_WINDOW", "-5m")

	_, err = LoadEnvironmentVariables()
	assert.Error(t, err)
}
