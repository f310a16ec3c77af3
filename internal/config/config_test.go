package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.MySQL.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 30, cfg.RateLimit.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.True(t, cfg.RabbitMQ.Publish)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_BASE_URL", "https://api.example.com/api")
	t.Setenv("REQUIRE_ACCOUNT", "true")
	t.Setenv("DB_HOST", "db")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "bogus")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
	assert.True(t, cfg.RequireAccount)
	assert.True(t, cfg.MySQL.Enabled())
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.RabbitMQ.URL)
	// ttl is raised to cover five refills
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, "session_route", cfg.RateLimit.KeyStrategy)
}

func TestLoadRejectsBadURL(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"relative api url", "API_BASE_URL", "/api"},
		{"public url without scheme", "PUBLIC_URL", "tickets.example.com"},
		{"zero timeout", "API_TIMEOUT", "0s"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
