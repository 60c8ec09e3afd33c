package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 20.0, cfg.Server.RateLimitRPS)
		assert.Equal(t, 40, cfg.Server.RateLimitBurst)

		assert.Equal(t, "data/sprayshop.db", cfg.Store.Path)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("SPRAYSHOP_SERVER_PORT", "3000")
		t.Setenv("SPRAYSHOP_LOGGING_LEVEL", "warn")
		t.Setenv("SPRAYSHOP_STORE_PATH", "/tmp/shop.db")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/tmp/shop.db", cfg.Store.Path)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sprayshop.yaml")
		body := []byte("server:\n  port: 9100\n  host: 0.0.0.0\nlogging:\n  level: debug\n")
		require.NoError(t, os.WriteFile(path, body, 0o644))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		// Non-overridden values keep their defaults.
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
	})

	t.Run("EnvBeatsFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sprayshop.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))

		t.Setenv("SPRAYSHOP_SERVER_PORT", "4000")

		cfg, err := Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.Server.Port)
	})

	t.Run("DurationFromFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sprayshop.yaml")
		body := []byte("server:\n  read_timeout: 45s\n  shutdown_timeout: 5m\n")
		require.NoError(t, os.WriteFile(path, body, 0o644))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
	})

	t.Run("InvalidPortRejected", func(t *testing.T) {
		t.Setenv("SPRAYSHOP_SERVER_PORT", "70000")

		_, err := Load(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("MalformedFileRejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sprayshop.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a map\n"), 0o644))

		_, err := Load(ctx, path)
		require.Error(t, err)
	})
}
