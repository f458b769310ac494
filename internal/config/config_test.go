package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredFlags = []string{
	"--backend.secret=shared-secret-0123456789",
	"--session.secret=session-secret-0123456789",
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(requiredFlags)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "http://localhost:9090", cfg.Backend.URL)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 15*time.Minute, cfg.Cache.IdleTTL)
	assert.Equal(t, 30*time.Minute, cfg.Media.TTL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.Auth.GitHub.CallbackURL)
	assert.False(t, cfg.GitHubEnabled())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	args := append([]string{
		"--port=9000",
		"--cache.stale_time=5s",
		"--auth.dev_login",
		"--log_level=debug",
	}, requiredFlags...)

	cfg, err := Load(args)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Cache.StaleTime)
	assert.True(t, cfg.Auth.DevLogin)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, "http://localhost:9000/auth/github/callback", cfg.Auth.GitHub.CallbackURL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SKILLSWAP_BACKEND_URL", "http://backend.internal:7000")
	t.Setenv("SKILLSWAP_BACKEND_SECRET", "env-shared-secret-0123456789")
	t.Setenv("SKILLSWAP_SESSION_SECRET", "env-session-secret-0123456789")
	t.Setenv("SKILLSWAP_AUTH_GITHUB_CLIENT_ID", "gh-client")
	t.Setenv("SKILLSWAP_AUTH_GITHUB_CLIENT_SECRET", "gh-secret")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://backend.internal:7000", cfg.Backend.URL)
	assert.Equal(t, "env-shared-secret-0123456789", cfg.Backend.Secret)
	assert.True(t, cfg.GitHubEnabled())
}

func TestLoad_MissingSecrets(t *testing.T) {
	_, err := Load(nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.secret")
	assert.Contains(t, err.Error(), "session.secret")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		flag string
		want string
	}{
		{"bad env", "--env=staging", "env"},
		{"bad level", "--log_level=verbose", "log_level"},
		{"short secret", "--backend.secret=short", "backend.secret"},
		{"zero stale time", "--cache.stale_time=0s", "cache.stale_time"},
		{"zero idle ttl", "--cache.idle_ttl=0s", "cache.idle_ttl"},
		{"github without secret", "--auth.github.client_id=abc", "auth.github.client_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append(append([]string{}, requiredFlags...), tt.flag))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})

	assert.Error(t, err)
}

func TestLoadDevBackend(t *testing.T) {
	cfg, err := LoadDevBackend([]string{
		"--backend.secret=shared-secret-0123456789",
		"--admins=github:1,dev:root",
		"--db_path=:memory:",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, []string{"github:1", "dev:root"}, cfg.Admins)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
