// Package runlog configures the process-wide structured logger, using
// slog.Info/Debug/Warn/Error with structured key-value pairs rather than
// formatted strings.
package runlog

import (
	"log/slog"
	"os"
)

// New returns a logger writing to os.Stderr at Debug level when verbose is
// true, Info otherwise. jsonFormat selects slog.JSONHandler over
// slog.TextHandler, mirroring the root command's --format flag.
func New(verbose, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
