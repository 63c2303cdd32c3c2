package plugin

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/plugind/internal/functions"
)

func TestRecord_InvokeWithoutWireReturnsErrNoCommandChannel(t *testing.T) {
	rec := NewRecord("p", "p.plugin", "/p.plugin", "", 1)
	_, err := rec.Invoke(context.Background(), "get_version", nil, time.Second)
	assert.ErrorIs(t, err, ErrNoCommandChannel)
}

func TestRecord_InvokeWritesFunctionLineAndOpensRegistry(t *testing.T) {
	rec := NewRecord("p", "p.plugin", "/p.plugin", "", 1)
	fn := functions.NewRegistry()
	var buf bytes.Buffer
	rec.AttachWire(fn, &buf)

	resultCh, err := rec.Invoke(context.Background(), "get_version", []string{"--verbose"}, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, resultCh)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "FUNCTION "))
	assert.Contains(t, line, " 5 get_version --verbose\n")
	assert.Equal(t, 1, fn.Len())
}

func TestQuoteField_QuotesWhitespace(t *testing.T) {
	assert.Equal(t, "bare", quoteField("bare"))
	assert.Equal(t, `""`, quoteField(""))
	assert.Equal(t, `"has space"`, quoteField("has space"))
	assert.Equal(t, `"a\"b"`, quoteField(`a"b`))
}
