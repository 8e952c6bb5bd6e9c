package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/compozy/astsearch/engine/paginate"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/engine/stream"
)

const (
	defaultConfigFileName = "astsearch"
	defaultConfigType     = "yaml"
)

// Config represents the application configuration
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Budgets    map[string]int   `mapstructure:"budgets"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Walker     WalkerConfig     `mapstructure:"walker"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
}

// EngineConfig configures the external ast-grep invocation
type EngineConfig struct {
	Binary         string `mapstructure:"binary"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PaginationConfig exposes the auto page-size tuning knobs
type PaginationConfig struct {
	PageFill      float64 `mapstructure:"page_fill"`
	MaxPageSize   int     `mapstructure:"max_page_size"`
	EmptyPageSize int     `mapstructure:"empty_page_size"`
}

// StreamConfig configures chunked streaming delivery
type StreamConfig struct {
	ChunkSize           int `mapstructure:"chunk_size"`
	InterChunkDelayMs   int `mapstructure:"inter_chunk_delay_ms"`
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	DefaultTimeoutSecs  int `mapstructure:"default_timeout_seconds"`
}

// WalkerConfig configures work-unit enumeration
type WalkerConfig struct {
	IgnoreDirs       []string `mapstructure:"ignore_dirs"`
	RespectGitignore bool     `mapstructure:"respect_gitignore"`
}

// AuditConfig configures the security audit heuristics
type AuditConfig struct {
	PatternsFile string `mapstructure:"patterns_file"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	streamDefaults := stream.DefaultConfig()
	paginateDefaults := paginate.DefaultTunables()
	return &Config{
		Engine: EngineConfig{
			Binary:         "ast-grep",
			TimeoutSeconds: 30,
		},
		Budgets: paginate.DefaultBudgets(),
		Pagination: PaginationConfig{
			PageFill:      paginateDefaults.PageFill,
			MaxPageSize:   paginateDefaults.MaxPageSize,
			EmptyPageSize: paginateDefaults.EmptyPageSize,
		},
		Stream: StreamConfig{
			ChunkSize:          streamDefaults.ChunkSize,
			InterChunkDelayMs:  int(streamDefaults.InterChunkDelay / time.Millisecond),
			GracePeriodSeconds: int(streamDefaults.GracePeriod / time.Second),
			DefaultTimeoutSecs: int(streamDefaults.DefaultTimeout / time.Second),
		},
		Walker: WalkerConfig{
			IgnoreDirs:       search.DefaultIgnoreDirs(),
			RespectGitignore: true,
		},
		Audit: AuditConfig{},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a file, falling back to defaults when no
// file is found
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		candidate := filepath.Join(".", defaultConfigFileName+"."+defaultConfigType)
		if _, err := os.Stat(candidate); err != nil {
			return cfg, nil
		}
		configPath = candidate
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType(defaultConfigType)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures the configuration is usable, filling defaults for
// optional fields
func (c *Config) Validate() error {
	if c.Engine.Binary == "" {
		c.Engine.Binary = "ast-grep"
	}
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = 30
	}
	if len(c.Budgets) == 0 {
		c.Budgets = paginate.DefaultBudgets()
	}
	if _, ok := c.Budgets["default"]; !ok {
		return fmt.Errorf("budgets must define a \"default\" entry")
	}
	for responseType, limit := range c.Budgets {
		if limit <= 0 {
			return fmt.Errorf("budgets.%s must be positive", responseType)
		}
	}
	if c.Stream.ChunkSize < 0 {
		return fmt.Errorf("stream.chunk_size must not be negative")
	}
	return nil
}

// PaginatorTunables converts the pagination section for the paginator
func (c *Config) PaginatorTunables() paginate.Tunables {
	return paginate.Tunables{
		PageFill:      c.Pagination.PageFill,
		MaxPageSize:   c.Pagination.MaxPageSize,
		EmptyPageSize: c.Pagination.EmptyPageSize,
	}
}

// StreamConfig converts the stream section for the controller
func (c *Config) StreamConfig() *stream.Config {
	cfg := stream.DefaultConfig()
	if c.Stream.ChunkSize > 0 {
		cfg.ChunkSize = c.Stream.ChunkSize
	}
	if c.Stream.InterChunkDelayMs > 0 {
		cfg.InterChunkDelay = time.Duration(c.Stream.InterChunkDelayMs) * time.Millisecond
	}
	if c.Stream.GracePeriodSeconds > 0 {
		cfg.GracePeriod = time.Duration(c.Stream.GracePeriodSeconds) * time.Second
	}
	if c.Stream.DefaultTimeoutSecs > 0 {
		cfg.DefaultTimeout = time.Duration(c.Stream.DefaultTimeoutSecs) * time.Second
	}
	return cfg
}

// EngineSettings converts the engine section for the search engine
func (c *Config) EngineSettings() *search.EngineConfig {
	return &search.EngineConfig{
		BinaryPath: c.Engine.Binary,
		Timeout:    time.Duration(c.Engine.TimeoutSeconds) * time.Second,
	}
}
