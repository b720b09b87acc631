package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var logFormats = []string{"json", "text"}

// newLogger builds the process-wide *slog.Logger, grounded on the
// teacher's cmd/dex/logger.go level/format selection.
func newLogger(level, format string) (*slog.Logger, error) {
	slogLevel := slog.LevelInfo
	if level != "" {
		if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	default:
		return nil, fmt.Errorf("log format is not one of the supported values (%s): %s", strings.Join(logFormats, ", "), format)
	}
	return slog.New(handler), nil
}
