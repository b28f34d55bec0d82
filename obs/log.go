// Package obs holds the observability plumbing shared across the service:
// the structured logger and the Prometheus metrics.
package obs

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the service-wide structured JSON logger.
func NewLogger(service string) *slog.Logger {
	return NewLoggerTo(os.Stdout, service)
}

// NewLoggerTo is NewLogger with an explicit sink, for tests.
func NewLoggerTo(w io.Writer, service string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil)).With("service", service)
}
