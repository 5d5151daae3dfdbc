package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with required database URL", func(t *testing.T) {
		t.Setenv("GROVE_DATABASE_URL", "postgres://localhost/grove")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "postgres://localhost/grove", cfg.Database.PrimaryURL)
		assert.Equal(t, 25, cfg.Database.MaxConns)
		assert.False(t, cfg.Redis.Enabled)
		assert.True(t, cfg.Observability.MetricsEnabled)
		assert.Equal(t, 5*time.Second, cfg.AutoJoin.DNSTimeout)
		assert.Equal(t, 30*24*time.Hour, cfg.AutoJoin.PendingTTL)
		assert.Equal(t, 10, cfg.AutoJoin.VerifyRateLimit)
	})

	t.Run("missing database URL fails validation", func(t *testing.T) {
		t.Setenv("GROVE_DATABASE_URL", "")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GROVE_DATABASE_URL")
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("GROVE_DATABASE_URL", "postgres://localhost/grove")
		t.Setenv("GROVE_PORT", "9090")
		t.Setenv("GROVE_REDIS_ENABLED", "true")
		t.Setenv("GROVE_AUTOJOIN_DNS_TIMEOUT", "2s")
		t.Setenv("GROVE_DATABASE_REPLICA_URLS", "postgres://r1/grove,postgres://r2/grove")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 2*time.Second, cfg.AutoJoin.DNSTimeout)
		assert.Equal(t, []string{"postgres://r1/grove", "postgres://r2/grove"}, cfg.Database.ReplicaURLs)
	})

	t.Run("connection pool bounds are checked", func(t *testing.T) {
		t.Setenv("GROVE_DATABASE_URL", "postgres://localhost/grove")
		t.Setenv("GROVE_DATABASE_MAX_CONNS", "2")
		t.Setenv("GROVE_DATABASE_MIN_CONNS", "10")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
