package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 300, cfg.CacheDurationSeconds)
	assert.Equal(t, 5*time.Minute, cfg.CacheDuration())
	assert.Equal(t, 90, cfg.DataRetentionDays)
	assert.True(t, cfg.TrackingEnabled)
	assert.True(t, cfg.TrackAnonymous)
	assert.False(t, cfg.TrackAdminUsers)
	assert.False(t, cfg.ClickHouseEnabled())
	assert.Empty(t, cfg.ExcludeUserRoles)
}

func TestLoadClampsBoundedSettings(t *testing.T) {
	t.Setenv("CACHE_DURATION", "10")
	t.Setenv("DATA_RETENTION_DAYS", "1000")
	t.Setenv("EXCLUDE_USER_ROLES", "customer, wholesale ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.CacheDurationSeconds)
	assert.Equal(t, 365, cfg.DataRetentionDays)
	assert.Equal(t, []string{"customer", "wholesale"}, cfg.ExcludeUserRoles)
}

func TestLoadRejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 60, ClampCacheDuration(0))
	assert.Equal(t, 3600, ClampCacheDuration(7200))
	assert.Equal(t, 300, ClampCacheDuration(300))
	assert.Equal(t, 1, ClampRetentionDays(-5))
	assert.Equal(t, 30, ClampRetentionDays(30))
}
