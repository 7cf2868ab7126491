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

func TestLoadAuthority_Defaults(t *testing.T) {
	for _, key := range []string{"AUTHORITY_ADDR", "AUTHORITY_DB_URL", "LENDING_URL", "SYNC_TIMEOUT", "SYNC_BREAKER_FAILURES", "LOG_LEVEL", "MIGRATE_ON_START", "SERVICE_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadAuthority()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.SyncTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Empty(t, cfg.LendingURL)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "authority", cfg.ServiceName)
}

func TestLoadAuthority_Overrides(t *testing.T) {
	t.Setenv("LENDING_URL", "http://lending:8082/")
	t.Setenv("SYNC_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg, err := LoadAuthority()
	require.NoError(t, err)

	assert.Equal(t, "http://lending:8082", cfg.LendingURL)
	assert.Equal(t, 750*time.Millisecond, cfg.SyncTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoadAuthority_InvalidValues(t *testing.T) {
	t.Setenv("SYNC_TIMEOUT", "soon")
	_, err := LoadAuthority()
	assert.Error(t, err)

	t.Setenv("SYNC_TIMEOUT", "")
	t.Setenv("SYNC_BREAKER_FAILURES", "0")
	_, err = LoadAuthority()
	assert.Error(t, err)
}

func TestLoadLending_RateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("LENDING_ADDR", "")

	cfg, err := LoadLending()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.Equal(t, ":8082", cfg.Addr)
}

func TestLoadLending_Chaos(t *testing.T) {
	t.Setenv("CHAOS_ENABLED", "")
	cfg, err := LoadLending()
	require.NoError(t, err)
	assert.False(t, cfg.ChaosEnabled)

	t.Setenv("CHAOS_ENABLED", "true")
	cfg, err = LoadLending()
	require.NoError(t, err)
	assert.True(t, cfg.ChaosEnabled)

	t.Setenv("CHAOS_ENABLED", "maybe")
	_, err = LoadLending()
	assert.ErrorContains(t, err, "CHAOS_ENABLED")
}

func TestLoadChaos(t *testing.T) {
	t.Setenv("AUTHORITY_URL", "http://authority:8081/")
	t.Setenv("LENDING_URL", "")
	t.Setenv("CHAOS_LATENCY", "3s")
	t.Setenv("CHAOS_PROBE_BUDGET", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadChaos()
	require.NoError(t, err)
	assert.Equal(t, "http://authority:8081", cfg.AuthorityURL)
	assert.Equal(t, "http://localhost:8082", cfg.LendingURL)
	assert.Equal(t, 3*time.Second, cfg.Latency)
	assert.Equal(t, 15*time.Second, cfg.ProbeBudget)

	t.Setenv("CHAOS_LATENCY", "-1s")
	_, err = LoadChaos()
	assert.Error(t, err)
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env.lending")
	require.NoError(t, os.WriteFile(p, []byte("LENDING_DB_URL=from_file\nLENDING_ADDR=:9999\n"), 0o644))

	t.Setenv("LENDING_DB_URL", "from_env")
	t.Setenv("LENDING_ADDR", "")
	require.NoError(t, os.Unsetenv("LENDING_ADDR"))

	LoadEnvFiles(filepath.Join(dir, "missing.env"), p)
	t.Cleanup(func() { _ = os.Unsetenv("LENDING_ADDR") })

	assert.Equal(t, "from_env", os.Getenv("LENDING_DB_URL"))
	assert.Equal(t, ":9999", os.Getenv("LENDING_ADDR"))
}
