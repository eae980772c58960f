package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogFileName is created inside the state directory when debugging is on.
const LogFileName = "ctxguard.log"

// SetupLogging installs the default slog logger. Hooks own stdout and stderr,
// so debug output goes to a file in the state directory; with debugging off
// everything is discarded. The returned func closes the log file.
func (c Config) SetupLogging() func() {
	if !c.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}
	}

	if err := os.MkdirAll(c.StateDir, 0755); err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(c.StateDir, LogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger.With("pid", os.Getpid()))
	return func() { f.Close() }
}
