package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "plugind", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)

	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetAttributes(ctx, PluginID("example.plugin"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("PluginID", func(t *testing.T) {
		attr := PluginID("example.plugin")
		assert.Equal(t, AttrPluginID, string(attr.Key))
		assert.Equal(t, "example.plugin", attr.Value.AsString())
	})

	t.Run("PluginExecutable", func(t *testing.T) {
		attr := PluginExecutable("/usr/libexec/plugind/example.plugin")
		assert.Equal(t, AttrPluginExec, string(attr.Key))
		assert.Equal(t, "/usr/libexec/plugind/example.plugin", attr.Value.AsString())
	})

	t.Run("Keyword", func(t *testing.T) {
		attr := Keyword("BEGIN")
		assert.Equal(t, AttrKeyword, string(attr.Key))
		assert.Equal(t, "BEGIN", attr.Value.AsString())
	})

	t.Run("LineNo", func(t *testing.T) {
		attr := LineNo(42)
		assert.Equal(t, AttrLineNo, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("WorkerJob", func(t *testing.T) {
		attr := WorkerJob(3)
		assert.Equal(t, AttrWorkerJob, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("Chart", func(t *testing.T) {
		attr := Chart("disk_io")
		assert.Equal(t, AttrChart, string(attr.Key))
		assert.Equal(t, "disk_io", attr.Value.AsString())
	})

	t.Run("Dimension", func(t *testing.T) {
		attr := Dimension("reads")
		assert.Equal(t, AttrDimension, string(attr.Key))
		assert.Equal(t, "reads", attr.Value.AsString())
	})

	t.Run("Host", func(t *testing.T) {
		attr := Host("db-primary")
		assert.Equal(t, AttrHost, string(attr.Key))
		assert.Equal(t, "db-primary", attr.Value.AsString())
	})

	t.Run("TransactionID", func(t *testing.T) {
		attr := TransactionID("abc-123")
		assert.Equal(t, AttrTransactionID, string(attr.Key))
		assert.Equal(t, "abc-123", attr.Value.AsString())
	})

	t.Run("FunctionName", func(t *testing.T) {
		attr := FunctionName("get_version")
		assert.Equal(t, AttrFunctionName, string(attr.Key))
		assert.Equal(t, "get_version", attr.Value.AsString())
	})

	t.Run("TimeoutMs", func(t *testing.T) {
		attr := TimeoutMs(5000)
		assert.Equal(t, AttrTimeoutMs, string(attr.Key))
		assert.Equal(t, int64(5000), attr.Value.AsInt64())
	})

	t.Run("SerialFailures", func(t *testing.T) {
		attr := SerialFailures(2)
		assert.Equal(t, AttrSerialFailures, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})
}

func TestStartDispatchSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartDispatchSpan(ctx, "example.plugin", "BEGIN", 7)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartDispatchSpan(ctx, "example.plugin", "SET", 8, Chart("disk_io"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartPluginRunSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartPluginRunSpan(ctx, "example.plugin", "/usr/libexec/plugind/example.plugin")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartFunctionInvokeSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartFunctionInvokeSpan(ctx, "example.plugin", "txn-1", "get_version", TimeoutMs(5000))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
