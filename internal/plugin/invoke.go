package plugin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/telemetry"
)

// ErrNoCommandChannel is returned by Invoke when the record has no attached
// writer to send a FUNCTION request on, e.g. because the owning process
// supervisor never wired one up.
var ErrNoCommandChannel = fmt.Errorf("plugin has no writable command channel")

// Invoke writes a FUNCTION request line to the plugin and returns a channel
// the caller can receive the eventual functions.Result from. This is the
// Control API's entry point into the FUNCTION /
// FUNCTION_RESULT_BEGIN...END round trip: the transaction id is generated
// here so two concurrent callers never collide. ctx scopes only the span
// covering the request write; the asynchronous wait for the result is the
// caller's responsibility via the returned channel.
func (r *Record) Invoke(ctx context.Context, name string, args []string, timeout time.Duration) (<-chan functions.Result, error) {
	w := r.CommandWriter()
	fn := r.Functions()
	if w == nil || fn == nil {
		return nil, ErrNoCommandChannel
	}

	txn := uuid.NewString()
	_, span := telemetry.StartFunctionInvokeSpan(ctx, r.ID, txn, name, telemetry.TimeoutMs(timeout.Milliseconds()))
	defer span.End()

	resultCh, err := fn.Open(txn, timeout)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	line := formatFunctionLine(txn, timeout, name, args)
	if _, werr := io.WriteString(w, line); werr != nil {
		fn.Cancel(txn)
		err = fmt.Errorf("failed to write FUNCTION request: %w", werr)
		span.RecordError(err)
		return nil, err
	}

	return resultCh, nil
}

// formatFunctionLine renders "FUNCTION <tx> <timeout_seconds> <name> [args...]\n",
// quoting any field that contains protocol whitespace.
func formatFunctionLine(txn string, timeout time.Duration, name string, args []string) string {
	fields := make([]string, 0, 4+len(args))
	fields = append(fields, "FUNCTION", quoteField(txn), fmt.Sprintf("%d", int64(timeout.Seconds())), quoteField(name))
	for _, a := range args {
		fields = append(fields, quoteField(a))
	}
	return strings.Join(fields, " ") + "\n"
}

func quoteField(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
