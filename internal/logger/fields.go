package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the parser, registry,
// and plugin supervisor. Use these keys consistently so log lines aggregate
// cleanly regardless of which component emitted them.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Plugin identity
	// ========================================================================
	KeyPluginID   = "plugin_id"   // Plugin record identifier
	KeyPluginFile = "plugin_file" // Plugin executable path
	KeyPID        = "pid"         // Plugin process id, if spawned

	// ========================================================================
	// Protocol dispatch
	// ========================================================================
	KeyKeyword    = "keyword"     // First token of the current line
	KeyLineNo     = "line_no"     // 1-based line number within the session
	KeyWorkerJob  = "worker_job"  // Worker job id assigned to a keyword
	KeyFieldCount = "field_count" // Number of tokens parsed from a line

	// ========================================================================
	// Function calls
	// ========================================================================
	KeyTransactionID = "transaction_id" // FUNCTION transaction id
	KeyFunctionName  = "function_name"  // Invoked function name
	KeyTimeoutMs     = "timeout_ms"     // Requested timeout in milliseconds
	KeyHTTPCode      = "http_code"      // Status code carried by a function result

	// ========================================================================
	// Charts & samples
	// ========================================================================
	KeyChartID = "chart_id" // Chart type.id
	KeyDimID   = "dim_id"   // Dimension id
	KeyHost    = "host"     // Active host machine GUID

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Protocol error code
	KeyReason     = "reason"      // Free-form discard/abort reason
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// PluginID returns a slog.Attr for the plugin record identifier.
func PluginID(id string) slog.Attr {
	return slog.String(KeyPluginID, id)
}

// PluginFile returns a slog.Attr for the plugin executable path.
func PluginFile(path string) slog.Attr {
	return slog.String(KeyPluginFile, path)
}

// PID returns a slog.Attr for a process id.
func PID(pid int) slog.Attr {
	return slog.Int(KeyPID, pid)
}

// Keyword returns a slog.Attr for the dispatched keyword.
func Keyword(kw string) slog.Attr {
	return slog.String(KeyKeyword, kw)
}

// LineNo returns a slog.Attr for the current line number.
func LineNo(n uint64) slog.Attr {
	return slog.Uint64(KeyLineNo, n)
}

// WorkerJob returns a slog.Attr for a worker job id.
func WorkerJob(id int) slog.Attr {
	return slog.Int(KeyWorkerJob, id)
}

// FieldCount returns a slog.Attr for the number of tokens parsed.
func FieldCount(n int) slog.Attr {
	return slog.Int(KeyFieldCount, n)
}

// TransactionID returns a slog.Attr for a function transaction id.
func TransactionID(id string) slog.Attr {
	return slog.String(KeyTransactionID, id)
}

// FunctionName returns a slog.Attr for an invoked function name.
func FunctionName(name string) slog.Attr {
	return slog.String(KeyFunctionName, name)
}

// TimeoutMs returns a slog.Attr for a timeout in milliseconds.
func TimeoutMs(ms int64) slog.Attr {
	return slog.Int64(KeyTimeoutMs, ms)
}

// HTTPCode returns a slog.Attr for an HTTP-style status code.
func HTTPCode(code int) slog.Attr {
	return slog.Int(KeyHTTPCode, code)
}

// ChartID returns a slog.Attr for a chart identifier.
func ChartID(id string) slog.Attr {
	return slog.String(KeyChartID, id)
}

// DimID returns a slog.Attr for a dimension identifier.
func DimID(id string) slog.Attr {
	return slog.String(KeyDimID, id)
}

// Host returns a slog.Attr for the active host machine GUID.
func Host(guid string) slog.Attr {
	return slog.String(KeyHost, guid)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a protocol error code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Reason returns a slog.Attr for a free-form discard/abort reason.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}
