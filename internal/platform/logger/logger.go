package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Level defaults to info; set debug=true in
// development to see flag evaluations and sync reconciliation detail.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
