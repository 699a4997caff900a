package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/dbtrack/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6060", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pgx-tracked", cfg.Postgres.DriverName)
	assert.False(t, cfg.Pebble.Enabled)
	assert.Equal(t, "data/pebble", cfg.Pebble.Path)
	assert.EqualValues(t, 256<<20, cfg.Pebble.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Leak.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Leak.Interval)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DBTRACK_SERVER_ADDR", "0.0.0.0:9999")
	t.Setenv("DBTRACK_LOG_LEVEL", "trace")
	t.Setenv("DBTRACK_LEAK_THRESHOLD", "45s")
	t.Setenv("DBTRACK_PEBBLE_ENABLED", "true")
	t.Setenv("DBTRACK_PEBBLE_IN_MEMORY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, 45*time.Second, cfg.Leak.Threshold)
	assert.True(t, cfg.Pebble.Enabled)
	assert.True(t, cfg.Pebble.InMemory)

	lc := cfg.Log.LoggerConfig(nil)
	assert.Equal(t, logger.LevelTrace, lc.Level)
	assert.Equal(t, os.Stdout, lc.Writer)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbtrack.yaml")
	content := `
server:
  addr: "localhost:7070"
postgres:
  dsn: "postgres://app@localhost:5432/app"
leak:
  interval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DBTRACK_SERVER_ADDR", "localhost:8080")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr, "environment wins over file")
	assert.Equal(t, "postgres://app@localhost:5432/app", cfg.Postgres.DSN)
	assert.Equal(t, time.Minute, cfg.Leak.Interval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DBTRACK_LOG_LEVEL", "loud")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadKeywordValueDSN(t *testing.T) {
	dsn := "host=localhost port=5432 user=app dbname=app sslmode=disable"
	t.Setenv("DBTRACK_POSTGRES_DSN", dsn)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dsn, cfg.Postgres.DSN)
}

func TestLoadRejectsUnparsableDSN(t *testing.T) {
	t.Setenv("DBTRACK_POSTGRES_DSN", "host=localhost port=notaport")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pgdsn")
}
