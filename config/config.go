// Package config loads the settings for a standalone logicmaze process:
// where the database file lives, how big the buffer pool is, and how the
// ambient logging/telemetry stack should be configured.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sushant-115/logicmaze/internal/logging"
	"github.com/sushant-115/logicmaze/internal/telemetry"
)

// Config is the top-level, yaml-loadable configuration for a process that
// embeds the page cache.
type Config struct {
	// DBFilePath is the backing file for the page store.
	DBFilePath string `yaml:"db_file_path"`
	// BufferPoolSize is the number of frames in the buffer pool.
	BufferPoolSize int `yaml:"buffer_pool_size"`

	Logging   logging.Config   `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns a Config suitable for local development.
func Default() Config {
	return Config{
		DBFilePath:     "data/logicmaze.db",
		BufferPoolSize: 100,
		Logging: logging.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stdout",
		},
		Telemetry: telemetry.Config{
			Enabled:        false,
			ServiceName:    "logicmaze",
			PrometheusPort: 9464,
		},
	}
}

// Load reads and parses a yaml configuration file, overlaying it onto
// Default() so a partial file is valid.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.BufferPoolSize <= 0 {
		return Config{}, fmt.Errorf("config: buffer_pool_size must be positive, got %d", cfg.BufferPoolSize)
	}
	return cfg, nil
}
