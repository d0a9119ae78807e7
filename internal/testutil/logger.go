package testutil

import (
	"io"
	"log/slog"

	"github.com/briefcase-app/briefcase-server/internal/logger"
)

// MakeNoopLogger returns a Logger that discards everything, for tests.
func MakeNoopLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}
