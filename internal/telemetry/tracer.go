package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for collector-protocol operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Plugin attributes
	// ========================================================================
	AttrPluginID   = "plugin.id"
	AttrPluginExec = "plugin.executable"

	// ========================================================================
	// Protocol dispatch attributes
	// ========================================================================
	AttrKeyword   = "protocol.keyword"
	AttrLineNo    = "protocol.line"
	AttrWorkerJob = "protocol.worker_job_id"
	AttrChart     = "chart.id"
	AttrDimension = "chart.dimension_id"
	AttrHost      = "protocol.host"

	// ========================================================================
	// In-flight function call attributes
	// ========================================================================
	AttrTransactionID = "function.transaction_id"
	AttrFunctionName  = "function.name"
	AttrTimeoutMs     = "function.timeout_ms"
	AttrHTTPStatus    = "function.http_status"

	// ========================================================================
	// History / supervisor attributes
	// ========================================================================
	AttrSerialFailures = "plugin.serial_failures"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// SpanDispatch wraps a single process_one keyword dispatch.
	SpanDispatch = "session.dispatch"

	// SpanDeferredCapture wraps a single deferred multi-line feed.
	SpanDeferredCapture = "session.deferred_capture"

	// SpanPluginRun wraps one Plugin Record & Loop run, from the first
	// line read to loop exit.
	SpanPluginRun = "plugin.run"

	// SpanFunctionInvoke wraps the write side of a FUNCTION request: txn
	// creation through the request line hitting the plugin's stdin. It
	// does not span the asynchronous wait for FUNCTION_RESULT_BEGIN.
	SpanFunctionInvoke = "function.invoke"
)

// PluginID returns an attribute for the plugin's configured identifier.
func PluginID(id string) attribute.KeyValue {
	return attribute.String(AttrPluginID, id)
}

// PluginExecutable returns an attribute for the plugin's executable path.
func PluginExecutable(path string) attribute.KeyValue {
	return attribute.String(AttrPluginExec, path)
}

// Keyword returns an attribute for the dispatched protocol keyword.
func Keyword(name string) attribute.KeyValue {
	return attribute.String(AttrKeyword, name)
}

// LineNo returns an attribute for the 1-based line number being processed.
func LineNo(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrLineNo, int64(n))
}

// WorkerJob returns an attribute for a keyword's worker job id.
func WorkerJob(id int) attribute.KeyValue {
	return attribute.Int(AttrWorkerJob, id)
}

// Chart returns an attribute for the active chart id.
func Chart(id string) attribute.KeyValue {
	return attribute.String(AttrChart, id)
}

// Dimension returns an attribute for a dimension id.
func Dimension(id string) attribute.KeyValue {
	return attribute.String(AttrDimension, id)
}

// Host returns an attribute for the current HOST override, if any.
func Host(host string) attribute.KeyValue {
	return attribute.String(AttrHost, host)
}

// TransactionID returns an attribute for an in-flight function call's
// transaction id.
func TransactionID(id string) attribute.KeyValue {
	return attribute.String(AttrTransactionID, id)
}

// FunctionName returns an attribute for the invoked FUNCTION callback name.
func FunctionName(name string) attribute.KeyValue {
	return attribute.String(AttrFunctionName, name)
}

// TimeoutMs returns an attribute for a function call's timeout in milliseconds.
func TimeoutMs(ms int64) attribute.KeyValue {
	return attribute.Int64(AttrTimeoutMs, ms)
}

// SerialFailures returns an attribute for a plugin's current serial-failure
// streak.
func SerialFailures(n int) attribute.KeyValue {
	return attribute.Int64(AttrSerialFailures, int64(n))
}

// StartDispatchSpan starts a span covering one process_one dispatch of
// keyword against lineNo.
func StartDispatchSpan(ctx context.Context, pluginID, keyword string, lineNo uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{PluginID(pluginID), Keyword(keyword), LineNo(lineNo)}, attrs...)
	return StartSpan(ctx, SpanDispatch, trace.WithAttributes(allAttrs...))
}

// StartPluginRunSpan starts a span covering one Plugin Record & Loop run.
func StartPluginRunSpan(ctx context.Context, pluginID, executable string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanPluginRun, trace.WithAttributes(PluginID(pluginID), PluginExecutable(executable)))
}

// StartFunctionInvokeSpan starts a span covering the request side of a
// FUNCTION call.
func StartFunctionInvokeSpan(ctx context.Context, pluginID, txn, name string, timeout attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanFunctionInvoke, trace.WithAttributes(
		PluginID(pluginID), TransactionID(txn), FunctionName(name), timeout,
	))
}
