package logging

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey int

const traceIDKey contextKey = iota

// TraceIDField is the log field carrying the trace ID.
const TraceIDField = "trace_id"

// NewID returns a new lexically sortable identifier. It is used for trace
// IDs and bulk run IDs.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ContextWithTraceID stores traceID in ctx.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID stored in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOrGenerateTraceID returns the trace ID already in ctx or a fresh one.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return NewID()
}

// FromContext returns the logger attached to ctx, tagged with the trace ID
// when one is present. Without an attached logger the global zerolog logger
// is used.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &log.Logger
	}
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		if zerolog.DefaultContextLogger != nil {
			logger = zerolog.DefaultContextLogger
		} else {
			logger = &log.Logger
		}
	}
	if id := TraceIDFromContext(ctx); id != "" {
		l := logger.With().Str(TraceIDField, id).Logger()
		return &l
	}
	return logger
}
