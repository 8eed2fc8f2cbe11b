// Package observability provides structured logging, metrics collection,
// health checks and request tracing utilities for coachpay.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the configured verbosity, as read from LOG_LEVEL.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Slog maps the level onto slog. Unknown values mean info.
func (l LogLevel) Slog() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(string(l)))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool
	// ServiceName and ServiceVersion are stamped on every record when set.
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is text output at info, for local runs.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "coachpay",
		ServiceVersion: "dev",
	}
}

// ProductionLogConfig is JSON on stdout with source locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         os.Stdout,
		AddSource:      true,
		ServiceName:    "coachpay",
		ServiceVersion: "unknown",
	}
}

// RedactedValue replaces the value of secret-bearing attributes.
const RedactedValue = "[REDACTED]"

var redactedKeys = map[string]struct{}{
	"signature":      {},
	"webhook_secret": {},
	"api_key":        {},
	"authorization":  {},
}

// NewLogger builds the process logger. Records carry the service name and
// version, then whichever of correlation, request, operation and trainer id
// the context holds. Secret-bearing attributes are redacted at any depth.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Level.Slog(),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}

	var base slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == LogFormatJSON {
		base = slog.NewJSONHandler(out, opts)
	}

	var service []slog.Attr
	if cfg.ServiceName != "" {
		service = append(service, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		service = append(service, slog.String("version", cfg.ServiceVersion))
	}
	return slog.New(contextHandler{next: base.WithAttrs(service)})
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, secret := redactedKeys[strings.ToLower(a.Key)]; secret {
		a.Value = slog.StringValue(RedactedValue)
	}
	return a
}

// contextFields lists the ids lifted from the context onto each record.
var contextFields = []struct {
	key string
	get func(context.Context) string
}{
	{CorrelationIDKey, CorrelationIDFromContext},
	{RequestIDKey, RequestIDFromContext},
	{OperationKey, OperationFromContext},
	{TrainerIDKey, TrainerIDFromContext},
}

// contextHandler copies request-scoped ids from ctx onto each record.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range contextFields {
		if v := f.get(ctx); v != "" {
			r.AddAttrs(slog.String(f.key, v))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}
