package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAdminSecret(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingAdminSecret)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Security.AdminSecret)
	assert.Equal(t, DatabaseDriverMongo, cfg.Database.Driver)
	assert.Equal(t, "analytics_events", cfg.Analytics.Collection)
	assert.Equal(t, 30, cfg.Analytics.DefaultWindowDays)
	assert.Equal(t, 60, cfg.Analytics.SummaryMaxAge)
	assert.Equal(t, 10, cfg.Analytics.TopN)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "none", cfg.Storage.Provider)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_COUNTER_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example, https://admin.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, DatabaseDriverMemory, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Redis.CounterTTL)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestGetEnvAsInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")

	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
}

func TestLoadEnv_NoAdminSecretNeeded(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "")
	t.Setenv("ANALYTICS_RETENTION_DAYS", "90")

	cfg := LoadEnv()

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.Security.AdminSecret)
	assert.Equal(t, 90, cfg.Analytics.RetentionDays)
}
