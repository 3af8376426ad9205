// Package klog provides the kernel's diagnostic logging: a package-level
// slog.Logger configured once at startup and tagged with a "component"
// field. Unlike a pre-runtime bootloader stage, this kernel has the full Go
// runtime available before a single trap fires, so there is no reason to
// hand-roll an allocation-free printf the way a bare-metal boot stage must.
package klog

import (
	"log/slog"
	"os"
)

var logger *slog.Logger

func init() {
	Init("info")
}

// Init (re)configures the package-level logger at the given level: "debug",
// "info", "warn", or "error". Unrecognized levels default to "info".
func Init(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger = slog.New(handler).With("component", "kernel")
}

// Debug logs a per-tick or per-dispatch scheduling decision.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Info logs a process lifecycle transition (fork, exec, exit, wait).
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs a recoverable but noteworthy condition.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs a fatal fault or internal inconsistency immediately before the
// exit path (or Machine.Abort) takes over.
func Error(msg string, args ...any) { logger.Error(msg, args...) }
