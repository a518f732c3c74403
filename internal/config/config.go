// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/bethropolis/treesync/internal/logger"
)

// Config holds the application's combined configuration.
type Config struct {
	Logger logger.Config `toml:"logger"` // Embed logger config under [logger] table
	Engine EngineConfig  `toml:"engine"` // Parse engine settings
}

// EngineConfig holds the parse engine's tunables.
type EngineConfig struct {
	// AsyncBudgetMicros is the microsecond time budget for a bounded parse
	// attempt (asynchronous mode). Synchronous mode ignores it.
	AsyncBudgetMicros int `toml:"async_budget_us"`

	// ChunkSize is the maximum number of bytes returned per text-provider read.
	ChunkSize int `toml:"chunk_size"`

	// IdleDelayMillis is the wait before the timer scheduler grants a
	// fallback slice.
	IdleDelayMillis int `toml:"idle_delay_ms"`

	// IdleSliceMillis is the length of one granted fallback slice.
	IdleSliceMillis int `toml:"idle_slice_ms"`
}

var (
	loadedConfig *Config
	loadOnce     sync.Once
	loadErr      error
)

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: logger.Config{
			LogLevel:    "info",
			LogFilePath: "", // Empty means default path logic applies
		},
		Engine: EngineConfig{
			AsyncBudgetMicros: DefaultAsyncBudgetMicros,
			ChunkSize:         DefaultChunkSize,
			IdleDelayMillis:   int(DefaultIdleDelay.Milliseconds()),
			IdleSliceMillis:   int(DefaultIdleSliceLength.Milliseconds()),
		},
	}
}

// loadFromFile attempts to load configuration from a TOML file.
// A missing file is not an error; the defaults apply.
func loadFromFile(filePath string, verbose bool) (*Config, error) {
	cfg := &Config{}
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if verbose {
			logger.Debugf("Config file not found: %s", filePath)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error checking config file '%s': %w", filePath, err)
	}

	metadata, err := toml.DecodeFile(filePath, cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
	}
	if len(metadata.Undecoded()) > 0 && verbose {
		logger.Warnf("Config file '%s': Unrecognized keys: %v", filePath, metadata.Undecoded())
	}
	return cfg, nil
}

// validate checks config values and resets invalid ones to defaults.
func (c *Config) validate() {
	defaults := NewDefaultConfig()

	if c.Engine.AsyncBudgetMicros <= 0 {
		c.Engine.AsyncBudgetMicros = defaults.Engine.AsyncBudgetMicros
	}
	if c.Engine.ChunkSize <= 0 {
		c.Engine.ChunkSize = defaults.Engine.ChunkSize
	}
	if c.Engine.IdleDelayMillis < 0 {
		c.Engine.IdleDelayMillis = defaults.Engine.IdleDelayMillis
	}
	if c.Engine.IdleSliceMillis <= 0 {
		c.Engine.IdleSliceMillis = defaults.Engine.IdleSliceMillis
	}

	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = defaults.Logger.LogLevel
	}
}

// LoadConfig orchestrates loading defaults, file, applying flags, and validation.
// It should be called only once, typically from main.
func LoadConfig(configFilePath string, flags *Flags) (*Config, error) {
	loadOnce.Do(func() {
		// During initial load, avoid logging as logger isn't initialized yet.
		verbose := false

		cfg := NewDefaultConfig()

		effectivePath := configFilePath
		if effectivePath == "" { // If flag not set, try default location
			configDir, err := os.UserConfigDir()
			if err == nil {
				effectivePath = filepath.Join(configDir, ConfigDirName, DefaultConfigFileName)
			} else {
				effectivePath = "" // Cannot load default path
			}
		}

		if effectivePath != "" {
			fileCfg, err := loadFromFile(effectivePath, verbose)
			if err != nil {
				loadErr = err
			} else if fileCfg != nil {
				if fileCfg.Logger.LogLevel != "" {
					cfg.Logger = fileCfg.Logger
				}
				if fileCfg.Engine.AsyncBudgetMicros > 0 {
					cfg.Engine.AsyncBudgetMicros = fileCfg.Engine.AsyncBudgetMicros
				}
				if fileCfg.Engine.ChunkSize > 0 {
					cfg.Engine.ChunkSize = fileCfg.Engine.ChunkSize
				}
				if fileCfg.Engine.IdleDelayMillis > 0 {
					cfg.Engine.IdleDelayMillis = fileCfg.Engine.IdleDelayMillis
				}
				if fileCfg.Engine.IdleSliceMillis > 0 {
					cfg.Engine.IdleSliceMillis = fileCfg.Engine.IdleSliceMillis
				}
			}
		}

		if flags != nil {
			flags.ApplyOverrides(cfg, verbose)
		}

		cfg.validate()

		loadedConfig = cfg
	})

	return loadedConfig, loadErr
}

// Get returns the loaded application configuration. Panics if LoadConfig wasn't called.
func Get() *Config {
	if loadedConfig == nil {
		panic("config.Get() called before config.LoadConfig()")
	}
	return loadedConfig
}
