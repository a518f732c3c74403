// internal/config/flags.go
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/bethropolis/treesync/internal/logger"
)

// Flags holds values parsed from command-line flags.
// Use pointers to distinguish between unset flags and zero-value flags.
type Flags struct {
	ConfigFilePath *string
	Version        *bool
	LogLevel       *string
	LogFilePath    *string
	AsyncBudget    *int
	ChunkSize      *int
	IdleDelay      *int
	IdleSlice      *int
	EnableTags     *string
	DisableTags    *string
	EnablePkgs     *string
	DisablePkgs    *string
	DebugLog       *bool
}

// DefineFlags sets up the command-line flags and associates them with the Flags struct fields.
func (f *Flags) DefineFlags() {
	f.ConfigFilePath = flag.String("config", "", fmt.Sprintf("Path to TOML configuration file (default ~/.config/%s/%s)", ConfigDirName, DefaultConfigFileName))
	f.Version = flag.Bool("version", false, "Show version information and exit")
	f.LogLevel = flag.String("loglevel", "", "Log level (debug, info, warn, error) - Overrides config file")
	f.LogFilePath = flag.String("logfile", "", "Path to write log file (use '-' for stderr) - Overrides config file")
	f.AsyncBudget = flag.Int("budget-us", 0, "Async parse time budget in microseconds - Overrides config file")
	f.ChunkSize = flag.Int("chunk", 0, "Bytes per text-provider read - Overrides config file")
	f.IdleDelay = flag.Int("idle-delay-ms", -1, "Delay before an idle slice is granted - Overrides config file")
	f.IdleSlice = flag.Int("idle-slice-ms", 0, "Length of one idle slice - Overrides config file")
	f.EnableTags = flag.String("log-tags", "", "Comma-separated list of tags to enable - Overrides config file")
	f.DisableTags = flag.String("log-disable-tags", "", "Comma-separated list of tags to disable - Overrides config file")
	f.EnablePkgs = flag.String("log-packages", "", "Comma-separated list of packages to enable - Overrides config file")
	f.DisablePkgs = flag.String("log-disable-packages", "", "Comma-separated list of packages to disable - Overrides config file")
	f.DebugLog = flag.Bool("debug-log", false, "Enable verbose debug logging for the logger filtering system")
}

// ParseFlags parses the defined command-line flags into the Flags struct.
// It returns the remaining non-flag arguments (e.g., the file path).
func (f *Flags) ParseFlags() []string {
	f.DefineFlags()
	flag.Parse()
	return flag.Args()
}

// ApplyOverrides updates the Config struct with values from flags *if* they were set.
func (f *Flags) ApplyOverrides(cfg *Config, verbose bool) {
	// Visit only processes flags that were actually set.
	flag.Visit(func(fl *flag.Flag) {
		if verbose {
			logger.DebugTagf("config", "Applying flag override: %s", fl.Name)
		}
		switch fl.Name {
		case "loglevel":
			if f.LogLevel != nil && *f.LogLevel != "" {
				cfg.Logger.LogLevel = *f.LogLevel
			}
		case "logfile":
			if f.LogFilePath != nil { // Empty string is valid ("-")
				cfg.Logger.LogFilePath = *f.LogFilePath
			}
		case "budget-us":
			if f.AsyncBudget != nil && *f.AsyncBudget > 0 {
				cfg.Engine.AsyncBudgetMicros = *f.AsyncBudget
			}
		case "chunk":
			if f.ChunkSize != nil && *f.ChunkSize > 0 {
				cfg.Engine.ChunkSize = *f.ChunkSize
			}
		case "idle-delay-ms":
			if f.IdleDelay != nil && *f.IdleDelay >= 0 {
				cfg.Engine.IdleDelayMillis = *f.IdleDelay
			}
		case "idle-slice-ms":
			if f.IdleSlice != nil && *f.IdleSlice > 0 {
				cfg.Engine.IdleSliceMillis = *f.IdleSlice
			}
		case "log-tags":
			if f.EnableTags != nil && *f.EnableTags != "" {
				cfg.Logger.EnabledTags = splitCommaList(*f.EnableTags)
			}
		case "log-disable-tags":
			if f.DisableTags != nil && *f.DisableTags != "" {
				cfg.Logger.DisabledTags = splitCommaList(*f.DisableTags)
			}
		case "log-packages":
			if f.EnablePkgs != nil && *f.EnablePkgs != "" {
				cfg.Logger.EnabledPackages = splitCommaList(*f.EnablePkgs)
			}
		case "log-disable-packages":
			if f.DisablePkgs != nil && *f.DisablePkgs != "" {
				cfg.Logger.DisabledPackages = splitCommaList(*f.DisablePkgs)
			}
		case "debug-log":
			if f.DebugLog != nil {
				logger.SetFilterDebug(*f.DebugLog)
			}
		}
	})
}

// splitCommaList splits a comma-separated list, trimming whitespace.
func splitCommaList(list string) []string {
	if list == "" {
		return nil
	}
	items := strings.Split(list, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
