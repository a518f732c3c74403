package logger

import (
	"log/slog"
	"strings"
)

// Config holds all settings for the logger.
type Config struct {
	// LogLevel specifies the minimum level to log (e.g., "debug", "info", "warn", "error").
	LogLevel string `toml:"log_level"`

	// LogFilePath is the path to the output log file. Use empty or "-" for stderr.
	LogFilePath string `toml:"log_file"`

	// EnabledTags only logs messages with these tags (if non-empty).
	EnabledTags []string `toml:"enabled_tags"`
	// DisabledTags prevents logging messages with these tags. Overrides EnabledTags.
	DisabledTags []string `toml:"disabled_tags"`

	// EnabledPackages only logs messages originating from these packages (if non-empty).
	// Package name is the immediate directory name (e.g., "syncer", "document").
	EnabledPackages []string `toml:"enabled_packages"`
	// DisabledPackages prevents logging from these packages. Overrides EnabledPackages.
	DisabledPackages []string `toml:"disabled_packages"`

	// EnabledFiles only logs messages originating from these filenames (if non-empty).
	EnabledFiles []string `toml:"enabled_files"`
	// DisabledFiles prevents logging from these filenames. Overrides EnabledFiles.
	DisabledFiles []string `toml:"disabled_files"`

	// --- Internal processed fields ---
	level               slog.Leveler
	enabledTagsSet      map[string]struct{}
	disabledTagsSet     map[string]struct{}
	enabledPackagesSet  map[string]struct{}
	disabledPackagesSet map[string]struct{}
	enabledFilesSet     map[string]struct{}
	disabledFilesSet    map[string]struct{}
}

// NewConfig creates a new Config with default values.
func NewConfig() Config {
	return Config{
		LogLevel:    "info",
		LogFilePath: "",
	}
}

// process parses string levels/lists into efficient internal formats.
func (c *Config) process() {
	c.level = slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		c.level = slog.LevelDebug
	case "info":
		c.level = slog.LevelInfo
	case "warn", "warning":
		c.level = slog.LevelWarn
	case "error", "err":
		c.level = slog.LevelError
	}

	c.enabledTagsSet = sliceToSet(c.EnabledTags)
	c.disabledTagsSet = sliceToSet(c.DisabledTags)
	c.enabledPackagesSet = sliceToSet(c.EnabledPackages)
	c.disabledPackagesSet = sliceToSet(c.DisabledPackages)
	c.enabledFilesSet = sliceToSet(c.EnabledFiles)
	c.disabledFilesSet = sliceToSet(c.DisabledFiles)
}

// sliceToSet converts a filter list to a lowercase lookup set. Empty lists
// become nil maps, which simplifies checks in the handler.
func sliceToSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			set[strings.ToLower(item)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
