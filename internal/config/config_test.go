package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notify")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.PushEnabled)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notify")
	t.Setenv("API_PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PUSH_ENABLED", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.PushEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
}
