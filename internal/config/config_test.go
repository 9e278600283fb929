package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range keys {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, 100, cfg.PageMaxSize)
	assert.Equal(t, "ledger", cfg.RedisKeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL)
	assert.Equal(t, "ledger.events", cfg.EventsExchange)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=password dbname=ledger sslmode=disable",
		cfg.GetDBConnectionString())
}

func TestLoadReadsEnvironment(t *testing.T) {
	for _, key := range keys {
		unsetEnvWithCleanup(t, key)
	}
	setEnvWithCleanup(t, "SERVER_PORT", "9090")
	setEnvWithCleanup(t, "PAGE_MAX_SIZE", "50")
	setEnvWithCleanup(t, "DASHBOARD_CACHE_TTL", "2m")
	setEnvWithCleanup(t, "REDIS_KEY_PREFIX", "tenant-a:")
	setEnvWithCleanup(t, "DATABASE_URL", "postgres://svc:secret@db:5432/ledger?sslmode=disable")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 50, cfg.PageMaxSize)
	assert.Equal(t, 2*time.Minute, cfg.DashboardCacheTTL)
	assert.Equal(t, "tenant-a", cfg.RedisKeyPrefix)
	assert.Equal(t, "postgres://svc:secret@db:5432/ledger?sslmode=disable", cfg.GetDBConnectionString())
	assert.NotContains(t, cfg.RedactedDBTarget(), "secret")
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	for _, key := range keys {
		unsetEnvWithCleanup(t, key)
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_NAME=from_file\nSERVER_PORT=7000\n"), 0o600))
	setEnvWithCleanup(t, "SERVER_PORT", "7001")
	// godotenv sets what it loads; make sure it is cleared afterwards.
	unsetEnvWithCleanup(t, "DB_NAME")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from_file", cfg.DBName)
	assert.Equal(t, "7001", cfg.ServerPort)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{}).SlogLevel())
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
