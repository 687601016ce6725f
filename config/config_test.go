package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("CURRENT_EVENT_ID", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 1, cfg.CurrentEventID)
	assert.Equal(t, time.Hour, cfg.SnapshotInterval)
	assert.Equal(t, 30*time.Minute, cfg.ActionTokenTTL)
	assert.Equal(t, 2, cfg.IngestRatePerSecond)
	assert.Equal(t, 10, cfg.IngestBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.R2.Enabled())
	assert.Zero(t, cfg.ArchiveKeep)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "missing secret", env: map[string]string{"JWT_SECRET_KEY": ""}},
		{name: "bad port", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "bad duration", env: map[string]string{"SNAPSHOT_INTERVAL": "soon"}},
		{name: "negative event", env: map[string]string{"CURRENT_EVENT_ID": "-1"}},
		{name: "missing event", env: map[string]string{"CURRENT_EVENT_ID": ""}},
		{name: "negative archive keep", env: map[string]string{"R2_KEEP_SNAPSHOTS": "-2"}},
		{name: "zero db conns", env: map[string]string{"DB_MAX_OPEN_CONNS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORAGE_DRIVER", "memory")
			t.Setenv("JWT_SECRET_KEY", "secret")
			t.Setenv("CURRENT_EVENT_ID", "1")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_Lists(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("CURRENT_EVENT_ID", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://lan.local, http://localhost:3000,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://lan.local", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
}
