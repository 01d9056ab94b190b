package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Root directory containing tool XML documents. Expansion requests
	// are confined to paths under it.
	ToolRoot string `yaml:"tool_root"`

	// Auth
	MacrodAPIKey string `yaml:"api_key"`

	// Downstream templating service (optional; batch publishing is
	// disabled when the URL is empty).
	DownstreamURL    string `yaml:"downstream_url"`
	DownstreamAPIKey string `yaml:"downstream_api_key"`

	// Worker pool
	WorkerCount          int `yaml:"worker_count"`
	MaxQueueSize         int `yaml:"max_queue_size"`
	MaxConcurrentPublish int `yaml:"max_concurrent_publish"`

	// Expansion cache
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	WatchFiles *bool         `yaml:"watch_files"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`
}

// Load reads configuration from an optional YAML file (MACROD_CONFIG) with
// environment variables taking precedence, then fills defaults.
func Load() (Config, error) {
	var cfg Config

	if path := os.Getenv("MACROD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.ToolRoot = envOr("TOOL_ROOT", cfg.ToolRoot)
	cfg.MacrodAPIKey = envOr("MACROD_API_KEY", cfg.MacrodAPIKey)
	cfg.DownstreamURL = envOr("DOWNSTREAM_URL", cfg.DownstreamURL)
	cfg.DownstreamAPIKey = envOr("DOWNSTREAM_API_KEY", cfg.DownstreamAPIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentPublish = envInt("MAX_CONCURRENT_PUBLISH", cfg.MaxConcurrentPublish)

	cfg.CacheTTL = envDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	if v := os.Getenv("WATCH_FILES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.WatchFiles = &b
		}
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8091"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentPublish <= 0 {
		cfg.MaxConcurrentPublish = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.WatchFiles == nil {
		watch := true
		cfg.WatchFiles = &watch
	}
}

// Watch reports whether the cache should invalidate on file changes.
func (c Config) Watch() bool {
	return c.WatchFiles != nil && *c.WatchFiles
}

func (c Config) Validate() error {
	if c.ToolRoot == "" {
		return fmt.Errorf("TOOL_ROOT is required")
	}
	info, err := os.Stat(c.ToolRoot)
	if err != nil {
		return fmt.Errorf("TOOL_ROOT: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("TOOL_ROOT is not a directory: %s", c.ToolRoot)
	}
	if c.MacrodAPIKey == "" {
		return fmt.Errorf("MACROD_API_KEY is required")
	}
	if c.DownstreamURL != "" && c.DownstreamAPIKey == "" {
		return fmt.Errorf("DOWNSTREAM_API_KEY is required when DOWNSTREAM_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
