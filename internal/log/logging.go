// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package log provides the leveled logging used across the module, backed
// by a process-wide [slog.Logger]. The default logger writes to stderr at
// the Info level.
package log // import "github.com/dexmeta/stackmap/internal/log"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var globalLogger = func() *atomic.Pointer[slog.Logger] {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	p := new(atomic.Pointer[slog.Logger])
	p.Store(l)
	return p
}()

// SetLogger sets the global Logger to l.
func SetLogger(l slog.Logger) {
	globalLogger.Store(&l)
}

// SetDebugLogger configures the global logger to write debug-level logs to
// stderr.
func SetDebugLogger() {
	SetLogger(*slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

func getLogger() *slog.Logger {
	return globalLogger.Load()
}

// Debugf logs detailed debugging information about internal behavior.
func Debugf(msg string, args ...any) {
	if getLogger().Enabled(context.Background(), slog.LevelDebug) {
		getLogger().Debug(fmt.Sprintf(msg, args...))
	}
}

// Infof logs informational messages about the general state of the program.
func Infof(msg string, args ...any) {
	if getLogger().Enabled(context.Background(), slog.LevelInfo) {
		getLogger().Info(fmt.Sprintf(msg, args...))
	}
}

// Errorf logs error messages about exceptional states.
func Errorf(msg string, args ...any) {
	if getLogger().Enabled(context.Background(), slog.LevelError) {
		getLogger().Error(fmt.Sprintf(msg, args...))
	}
}

// Fatalf logs a fatal error message and exits the program.
func Fatalf(msg string, args ...any) {
	Errorf(msg, args...)
	os.Exit(1)
}
