package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const tagKey = "tag" // The slog attribute key used for filtering tags

// filteringHandler wraps a base slog.Handler to drop records by tag, package
// or filename according to the processed Config.
type filteringHandler struct {
	baseHandler slog.Handler
	cfg         *Config
}

func newFilteringHandler(base slog.Handler, cfg *Config) *filteringHandler {
	return &filteringHandler{
		baseHandler: base,
		cfg:         cfg,
	}
}

// Enabled checks if the level is enabled by the base handler.
func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.baseHandler.Enabled(ctx, level)
}

// Handle applies filtering logic before passing the record to the base handler.
func (h *filteringHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg == nil {
		return h.baseHandler.Handle(ctx, r)
	}

	pkg, file := recordSource(r)

	if pkg != "" {
		pkgLower := strings.ToLower(pkg)
		if foundInSet(h.cfg.disabledPackagesSet, pkgLower) {
			h.debugDrop("disabled package", pkg)
			return nil
		}
		if h.cfg.enabledPackagesSet != nil && !foundInSet(h.cfg.enabledPackagesSet, pkgLower) {
			h.debugDrop("package not enabled", pkg)
			return nil
		}
	}

	if file != "" {
		fileLower := strings.ToLower(file)
		if foundInSet(h.cfg.disabledFilesSet, fileLower) {
			h.debugDrop("disabled file", file)
			return nil
		}
		if h.cfg.enabledFilesSet != nil && !foundInSet(h.cfg.enabledFilesSet, fileLower) {
			h.debugDrop("file not enabled", file)
			return nil
		}
	}

	tagValue, tagFound := recordTag(r)
	if tagFound {
		if foundInSet(h.cfg.disabledTagsSet, tagValue) {
			h.debugDrop("disabled tag", tagValue)
			return nil
		}
		if h.cfg.enabledTagsSet != nil && !foundInSet(h.cfg.enabledTagsSet, tagValue) {
			h.debugDrop("tag not enabled", tagValue)
			return nil
		}
	} else if h.cfg.enabledTagsSet != nil {
		// Specific tags are enabled but this record carries none.
		h.debugDrop("untagged record", r.Message)
		return nil
	}

	return h.baseHandler.Handle(ctx, r)
}

// WithAttrs returns a new handler with attributes added.
func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newFilteringHandler(h.baseHandler.WithAttrs(attrs), h.cfg)
}

// WithGroup returns a new handler with a group added.
func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return newFilteringHandler(h.baseHandler.WithGroup(name), h.cfg)
}

func (h *filteringHandler) debugDrop(reason, subject string) {
	if debugFilter {
		fmt.Fprintf(os.Stderr, "[FILTER] dropped (%s): %s\n", reason, subject)
	}
}

// recordSource extracts the package and base filename of the record's origin,
// preferring the Source attribute and falling back to the PC.
func recordSource(r slog.Record) (pkg, file string) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == slog.SourceKey {
			if source, ok := a.Value.Any().(*slog.Source); ok && source != nil && source.File != "" {
				file = filepath.Base(source.File)
				pkg = filepath.Base(filepath.Dir(source.File))
				return false
			}
		}
		return true
	})
	if file == "" && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		// A single PC yields its frame with more == false, so only the
		// resolved file tells us whether the lookup succeeded.
		frame, _ := frames.Next()
		if frame.File != "" {
			file = filepath.Base(frame.File)
			pkg = filepath.Base(filepath.Dir(frame.File))
		}
	}
	return pkg, file
}

// recordTag extracts the tag attribute, lowercased, if present.
func recordTag(r slog.Record) (string, bool) {
	var tag string
	var found bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == tagKey {
			tag = strings.ToLower(a.Value.String())
			found = true
			return false
		}
		return true
	})
	return tag, found
}

func foundInSet(set map[string]struct{}, key string) bool {
	if set == nil {
		return false
	}
	_, found := set[key]
	return found
}
