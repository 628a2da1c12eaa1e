package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "quickcart", cfg.Redis.Namespace)
	assert.False(t, cfg.Telemetry.TraceStdout)
	assert.Empty(t, cfg.Server.AllowOrigins)
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=8080\nJWT_SECRET=from-file-secret-123\nQUICKCART_TRACE_STDOUT=true\n"), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("QUICKCART_TRACE_STDOUT")
	})
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTH_TOKEN_TTL", "30m")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port, "the process environment wins over the env file")
	assert.Equal(t, "from-file-secret-123", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Telemetry.TraceStdout)
}

func TestValidate(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "-1h")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestCORSOrigins(t *testing.T) {
	t.Setenv("SERVER_CORS_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowOrigins)
}
