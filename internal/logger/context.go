package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context for a single plugin stream.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	PluginID  string    // Plugin record identifier
	Keyword   string    // Keyword currently being dispatched
	LineNo    uint64    // 1-based line number within the current session
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a plugin session.
func NewLogContext(pluginID string) *LogContext {
	return &LogContext{
		PluginID:  pluginID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		PluginID:  lc.PluginID,
		Keyword:   lc.Keyword,
		LineNo:    lc.LineNo,
		StartTime: lc.StartTime,
	}
}

// WithKeyword returns a copy with the keyword set.
func (lc *LogContext) WithKeyword(keyword string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Keyword = keyword
	}
	return clone
}

// WithLine returns a copy with the line number set.
func (lc *LogContext) WithLine(lineNo uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.LineNo = lineNo
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
