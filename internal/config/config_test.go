package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("IDENTITY_FIXTURES", "users.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3, cfg.PostRateLimit)
	assert.Equal(t, time.Minute, cfg.PostRateWindow)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.Equal(t, 512, cfg.PageCacheSize)
	assert.Equal(t, 60*time.Second, cfg.PageRevalidate)
	assert.True(t, cfg.IdentityBatch)
	assert.Equal(t, 4, cfg.IdentityConcurrency)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_FromDotEnv(t *testing.T) {
	baseEnv(t)
	t.Setenv("APP_PORT", "9000")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7000\nPOST_RATE_LIMIT=5\nCORS_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("POST_RATE_LIMIT")
		os.Unsetenv("CORS_ORIGINS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	// the process environment wins over the file
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.PostRateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {"JWT_SECRET": ""},
		"bad driver":       {"DB_DRIVER": "oracle"},
		"mysql needs dsn":  {"DB_DRIVER": "mysql"},
		"no identity":      {"IDENTITY_FIXTURES": ""},
		"bad int":          {"POST_RATE_LIMIT": "three"},
		"zero quota":       {"POST_RATE_LIMIT": "0"},
		"bad duration":     {"POST_RATE_WINDOW": "soon"},
		"bad bool":         {"IDENTITY_BATCH": "maybe"},
		"bad float":        {"IDENTITY_RPS": "fast"},
		"zero concurrency": {"IDENTITY_CONCURRENCY": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{LogLevel: "debug", LogPath: filepath.Join(dir, "logs", "app.log"), LogMaxSizeMB: 1}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	b, err := os.ReadFile(cfg.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)

	_, err = NewLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestInitDB_RejectsMemory(t *testing.T) {
	_, err := InitDB(&Config{DBDriver: "memory"}, nil)
	assert.Error(t, err)
}
