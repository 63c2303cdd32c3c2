package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/memsink"
)

func runStream(t *testing.T, s *Session) {
	t.Helper()
	for {
		line, eof, err := s.NextLine()
		require.NoError(t, err)
		if eof {
			break
		}
		_, err = s.ProcessOne(line, true)
		require.NoError(t, err)
	}
}

// S1. Basic sample, driven through the real standard keyword set into an
// in-memory sink.
func TestStandardKeywords_BasicSample(t *testing.T) {
	input := "CHART system.cpu '' 'Total CPU' '%' system system.cpu line 100 1 '' plugin module\n" +
		"DIMENSION user '' incremental 1 1 ''\n" +
		"BEGIN system.cpu 0\n" +
		"SET user = 42\n" +
		"END\n"

	table := NewKeywordTable()
	ms := memsink.New()
	ctx := &DispatchContext{Sink: ms, Functions: functions.NewRegistry()}
	require.NoError(t, RegisterStandardKeywords(table, ctx))

	s := NewSession(strings.NewReader(input), table, 0, nil)
	s.Handle = ctx
	runStream(t, s)

	require.Len(t, ms.CallsFor("CreateChart"), 1)
	assert.Equal(t, "system.cpu", ms.CallsFor("CreateChart")[0].Args[1])
	require.Len(t, ms.CallsFor("CreateDimension"), 1)
	require.Len(t, ms.CallsFor("BeginBatch"), 1)
	require.Len(t, ms.CallsFor("SetDimension"), 1)
	assert.Equal(t, int64(42), ms.CallsFor("SetDimension")[0].Args[1])
	require.Len(t, ms.CallsFor("CommitBatch"), 1)
	assert.True(t, ctx.ProducedSample())
}

// S3. Function round-trip: FUNCTION opens an entry, FUNCTION_RESULT_BEGIN
// arms deferred capture, FUNCTION_RESULT_END delivers it and the registry
// empties.
func TestStandardKeywords_FunctionRoundTrip(t *testing.T) {
	input := "FUNCTION txn-1 5 get_version\n" +
		"FUNCTION_RESULT_BEGIN \"txn-1\" 200 \"text/plain\" 1700000000\n" +
		"v1.2.3\n" +
		"FUNCTION_RESULT_END\n"

	table := NewKeywordTable()
	ms := memsink.New()
	fr := functions.NewRegistry()
	ctx := &DispatchContext{Sink: ms, Functions: fr}
	require.NoError(t, RegisterStandardKeywords(table, ctx))

	s := NewSession(strings.NewReader(input), table, 0, nil)
	s.Handle = ctx

	line, _, err := s.NextLine()
	require.NoError(t, err)
	_, err = s.ProcessOne(line, true)
	require.NoError(t, err)
	assert.Equal(t, 1, fr.Len())

	ch, dupErr := fr.Open("txn-1", 0)
	assert.Nil(t, ch)
	require.Error(t, dupErr)
	assert.True(t, functions.IsAlreadyExists(dupErr))

	runStream(t, s)

	assert.Equal(t, 0, fr.Len())
}

func TestStandardKeywords_DisableStopsSession(t *testing.T) {
	table := NewKeywordTable()
	ms := memsink.New()
	ctx := &DispatchContext{Sink: ms, Functions: functions.NewRegistry()}
	require.NoError(t, RegisterStandardKeywords(table, ctx))

	s := NewSession(strings.NewReader(""), table, 0, nil)
	s.Handle = ctx

	status, err := s.ProcessOne("DISABLE", true)
	require.NoError(t, err)
	assert.Equal(t, StatusStop, status)
	assert.True(t, ms.Disabled)
}

func TestStandardKeywords_SetBeforeBeginRejected(t *testing.T) {
	table := NewKeywordTable()
	ms := memsink.New()
	ctx := &DispatchContext{Sink: ms, Functions: functions.NewRegistry()}
	require.NoError(t, RegisterStandardKeywords(table, ctx))

	s := NewSession(strings.NewReader(""), table, 0, nil)
	s.Handle = ctx

	_, err := s.ProcessOne("SET user = 1", true)
	assert.Error(t, err)
	assert.Empty(t, ms.CallsFor("SetDimension"))
}
