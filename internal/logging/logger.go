// Package logging wraps structured logging with OpenTelemetry trace
// correlation. It has no net/http request middleware: this proxy speaks raw
// HTTP/1.0 over sockets it owns the framing for, not http.Handler, so there
// is no handler chain to wrap. Per-connection log calls are made directly
// from the worker pipeline instead.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger pairs a structured slog.Logger with an OpenTelemetry tracer so log
// lines and spans can be correlated.
type Logger struct {
	slogger *slog.Logger
	tracer  trace.Tracer
}

// New creates a structured JSON logger for the named service, with a
// tracer of the same name for span creation.
// Time Complexity: O(1) - constant time handler and tracer construction.
// Space Complexity: O(1) - fixed size structure.
func New(service string, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	})

	return &Logger{
		slogger: slog.New(handler),
		tracer:  otel.Tracer(service),
	}
}

// ParseLevel maps a config string ("debug"/"info"/"warn"/"error") to a
// slog.Level, defaulting to Info for anything else.
// Time Complexity: O(1) - fixed set of string comparisons.
// Space Complexity: O(1) - no allocations.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs msg at debug level, correlated with ctx's active span if any.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - attrs plus any trace-correlation fields appended.
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs msg at info level, correlated with ctx's active span if any.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - attrs plus any trace-correlation fields appended.
func (l *Logger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs msg at warn level, correlated with ctx's active span if any.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - attrs plus any trace-correlation fields appended.
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs an error and, if a recording span is present on ctx, marks it
// as failed.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - attrs plus the appended error and trace fields.
func (l *Logger) Error(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
	}
	l.logWithTrace(ctx, slog.LevelError, msg, attrs...)
}

// logWithTrace appends the active span's trace/span IDs (if any) to attrs
// and emits the log line at level.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - attrs plus up to two trace-correlation fields.
func (l *Logger) logWithTrace(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	l.slogger.LogAttrs(ctx, level, msg, attrs...)
}

// StartSpan starts a new span named operationName, for correlating a
// connection's parse/lookup/fetch/relay stages together.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - span attributes plus the new span/context.
func (l *Logger) StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, operationName, trace.WithAttributes(attrs...))
}

// WithFields returns a Logger that always includes the given attributes,
// useful for attaching a connection's remote address to every line it logs.
// Time Complexity: O(k) where k is the number of attrs supplied.
// Space Complexity: O(k) - a new Logger wrapping a bound slog.Logger.
func (l *Logger) WithFields(attrs ...slog.Attr) *Logger {
	anyAttrs := make([]any, len(attrs))
	for i, a := range attrs {
		anyAttrs[i] = a
	}
	return &Logger{
		slogger: l.slogger.With(anyAttrs...),
		tracer:  l.tracer,
	}
}

// Duration is a convenience slog.Attr constructor used throughout the
// worker pipeline to record stage timings.
// Time Complexity: O(1) - constant time attribute construction.
// Space Complexity: O(1) - no allocations.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}
