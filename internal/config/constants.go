package config

import "time"

// Base application details
const AppName = "treesync"
const ConfigDirName = "treesync"
const DefaultConfigFileName = "config.toml" // Main config file
const DefaultLogFileName = "treesync.log"

// Engine behavior.
//
// These could be moved to NewDefaultConfig(), keeping here for now.
const (
	// DefaultChunkSize bounds how many bytes a single text-provider callback
	// hands the parser, keeping per-call cost predictable.
	DefaultChunkSize = 5000

	// DefaultAsyncBudgetMicros is the time budget for a bounded (asynchronous
	// mode) parse attempt before the engine falls back to idle slicing.
	DefaultAsyncBudgetMicros = 15000

	// DefaultIdleDelay is how long the timer scheduler waits before granting
	// a fallback slice.
	DefaultIdleDelay = 5 * time.Millisecond

	// DefaultIdleSliceLength is the length of one granted fallback slice.
	DefaultIdleSliceLength = 15 * time.Millisecond
)
