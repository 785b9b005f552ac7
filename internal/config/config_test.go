package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, time.Second, cfg.DebounceWindow)
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, "admin123", cfg.DefaultAdminSecret)
	assert.Empty(t, cfg.RemoteBackend)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MOS_ADDR", ":9999")
	t.Setenv("MOS_DEBOUNCE_WINDOW", "250ms")
	t.Setenv("MOS_REMOTE_BACKEND", "Postgres")
	t.Setenv("MOS_DATABASE_URL", "postgres://localhost/mos")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, "postgres", cfg.RemoteBackend)
}

func TestValidateRemoteBackend(t *testing.T) {
	cfg := Defaults()
	cfg.RemoteBackend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.RemoteBackend = "dynamo"
	assert.Error(t, cfg.Validate())

	cfg.RemoteBackend = "mongo"
	cfg.MongoURL = "mongodb://localhost"
	assert.NoError(t, cfg.Validate())
}
