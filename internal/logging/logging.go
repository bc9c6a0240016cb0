// Package logging sets up structured logging to stderr, in the manner
// C360Studio-semspec's processors use log/slog rather than the teacher's
// bare log.Printf. Editors read the server's stderr as the LSP log pane,
// so the handler always writes there regardless of format.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Format selects the slog handler used for stderr output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New builds a *slog.Logger writing to stderr at the given level/format.
func New(format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

type requestIDKey struct{}

// WithRequestID returns a context carrying a request id for log
// correlation, retrieved by FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// FromContext returns a logger with the context's request id attached, or
// base unmodified if the context carries no request id.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return base.With("request_id", id)
	}
	return base
}
