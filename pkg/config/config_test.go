package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/astsearch/pkg/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("Should return valid default configuration", func(t *testing.T) {
		cfg := config.DefaultConfig()

		// Engine defaults
		assert.Equal(t, "ast-grep", cfg.Engine.Binary)
		assert.Equal(t, 30, cfg.Engine.TimeoutSeconds)

		// Budget defaults
		assert.Equal(t, 20000, cfg.Budgets["default"])
		assert.Equal(t, 15000, cfg.Budgets["search"])
		assert.Equal(t, 18000, cfg.Budgets["analysis"])
		assert.Equal(t, 8000, cfg.Budgets["minimal"])

		// Stream defaults
		assert.Equal(t, 10, cfg.Stream.ChunkSize)
		assert.Equal(t, 100, cfg.Stream.InterChunkDelayMs)
		assert.Equal(t, 300, cfg.Stream.GracePeriodSeconds)

		// Walker defaults
		assert.Contains(t, cfg.Walker.IgnoreDirs, ".git")
		assert.Contains(t, cfg.Walker.IgnoreDirs, "node_modules")
		assert.True(t, cfg.Walker.RespectGitignore)

		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should return default config when file does not exist", func(t *testing.T) {
		cfg, err := config.Load("non-existent-file.yaml")

		require.NoError(t, err)
		assert.Equal(t, "ast-grep", cfg.Engine.Binary)
	})

	t.Run("Should load config from YAML file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "astsearch.yaml")

		configContent := `
engine:
  binary: /usr/local/bin/ast-grep
  timeout_seconds: 10
budgets:
  default: 5000
  search: 2000
stream:
  chunk_size: 25
log:
  level: debug
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

		cfg, err := config.Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "/usr/local/bin/ast-grep", cfg.Engine.Binary)
		assert.Equal(t, 10, cfg.Engine.TimeoutSeconds)
		assert.Equal(t, 5000, cfg.Budgets["default"])
		assert.Equal(t, 2000, cfg.Budgets["search"])
		assert.Equal(t, 25, cfg.Stream.ChunkSize)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("Should reject config without a default budget", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "astsearch.yaml")

		configContent := `
budgets:
  search: 2000
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

		_, err := config.Load(configPath)
		assert.Error(t, err)
	})

	t.Run("Should reject a non-positive budget", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "astsearch.yaml")

		configContent := `
budgets:
  default: 0
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

		_, err := config.Load(configPath)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should fill defaults for empty fields", func(t *testing.T) {
		cfg := &config.Config{}
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "ast-grep", cfg.Engine.Binary)
		assert.Equal(t, 30, cfg.Engine.TimeoutSeconds)
		assert.NotEmpty(t, cfg.Budgets)
	})

	t.Run("Should reject a negative chunk size", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Stream.ChunkSize = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestConverters(t *testing.T) {
	t.Run("Should convert the stream section", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Stream.ChunkSize = 7
		cfg.Stream.InterChunkDelayMs = 50

		streamCfg := cfg.StreamConfig()
		assert.Equal(t, 7, streamCfg.ChunkSize)
		assert.Equal(t, 50*time.Millisecond, streamCfg.InterChunkDelay)
	})

	t.Run("Should convert the engine section", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Engine.TimeoutSeconds = 5

		engineCfg := cfg.EngineSettings()
		assert.Equal(t, "ast-grep", engineCfg.BinaryPath)
		assert.Equal(t, 5*time.Second, engineCfg.Timeout)
	})

	t.Run("Should convert the pagination section", func(t *testing.T) {
		cfg := config.DefaultConfig()
		tunables := cfg.PaginatorTunables()
		assert.InDelta(t, 0.6, tunables.PageFill, 0.001)
		assert.Equal(t, 50, tunables.MaxPageSize)
	})
}
