package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	t.Setenv("DB_USER", "root")
	t.Setenv("JWT_SECRET", "s")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "admin@maallem.com", c.AdminEmail)
	assert.False(t, c.TrustIdentityHeaders, "identity headers are opt-in")
	assert.Equal(t, "Admin", c.AdminName)
	assert.Empty(t, c.AdminPassword)
	assert.Equal(t, "images", c.ImagesDir)
	assert.Equal(t, 60, c.AccessTTLMin)
	assert.Equal(t, "localhost", c.Database().Host)
	assert.Empty(t, c.RabbitURL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_USER", "root")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_USER", "root")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, l)

	l, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestSetupLoggerWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := SetupLogger(Config{Env: "test", LogLevel: "warn"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"env":"test"`)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "0s")

	c, err := LoadCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 5*time.Minute, c.TTL)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c, err := LoadRateLimitConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 5*time.Minute, c.TTL)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	rc, err := LoadRedisConfig()
	require.NoError(t, err)
	client := NewRedisClient(rc)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, NewRedisClient(rc), "unreachable server yields nil")
}
