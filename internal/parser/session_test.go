package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/plugind/internal/protoerr"
)

func newTestSession(t *testing.T, input string) (*Session, *KeywordTable) {
	t.Helper()
	table := NewKeywordTable()
	s := NewSession(strings.NewReader(input), table, 0, nil)
	return s, table
}

// S1. Basic sample: CHART/DIMENSION/BEGIN/SET/END dispatch in order.
func TestSession_BasicSample(t *testing.T) {
	input := "CHART system.cpu '' 'Total CPU' '%' system system.cpu line 100 1 '' plugin module\n" +
		"DIMENSION user '' incremental 1 1 ''\n" +
		"BEGIN system.cpu 0\n" +
		"SET user = 42\n" +
		"END\n"

	var charts, dims, begins, sets, ends []string
	s, table := newTestSession(t, input)

	require.NoError(t, table.Register("CHART", func(s *Session, f []string) (Result, error) {
		charts = append(charts, f[1])
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("DIMENSION", func(s *Session, f []string) (Result, error) {
		dims = append(dims, f[1])
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("BEGIN", func(s *Session, f []string) (Result, error) {
		begins = append(begins, f[1])
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("SET", func(s *Session, f []string) (Result, error) {
		sets = append(sets, f[1])
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("END", func(s *Session, f []string) (Result, error) {
		ends = append(ends, f[0])
		return ResultOK, nil
	}))

	for {
		line, eof, err := s.NextLine()
		require.NoError(t, err)
		if eof {
			break
		}
		_, err = s.ProcessOne(line, true)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"system.cpu"}, charts)
	assert.Equal(t, []string{"user"}, dims)
	assert.Equal(t, []string{"system.cpu"}, begins)
	assert.Equal(t, []string{"user"}, sets)
	assert.Len(t, ends, 1)
}

// S2. Unknown keyword recovery: WOBBLE is discarded, CHART still dispatches.
func TestSession_UnknownKeywordRecovery(t *testing.T) {
	input := "WOBBLE foo bar\nCHART a.b '' t u f c line 1 1 '' p m\n"
	s, table := newTestSession(t, input)

	var unknown []string
	var created []string
	require.NoError(t, table.Register(ReservedUnknown, func(s *Session, f []string) (Result, error) {
		unknown = append(unknown, f[0])
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("CHART", func(s *Session, f []string) (Result, error) {
		created = append(created, f[1])
		return ResultOK, nil
	}))

	for {
		line, eof, err := s.NextLine()
		require.NoError(t, err)
		if eof {
			break
		}
		_, err = s.ProcessOne(line, true)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"WOBBLE"}, unknown)
	assert.Equal(t, []string{"a.b"}, created)
}

// S5. Pushback replay: push(X) then NextLine observes X again before the
// underlying source advances.
func TestSession_PushbackReplay(t *testing.T) {
	s, _ := newTestSession(t, "FIRST\nSECOND\n")

	line, eof, err := s.NextLine()
	require.NoError(t, err)
	require.False(t, eof)
	require.Equal(t, "FIRST", line)

	s.Push(line)

	replayed, eof, err := s.NextLine()
	require.NoError(t, err)
	require.False(t, eof)
	assert.Equal(t, "FIRST", replayed)

	next, eof, err := s.NextLine()
	require.NoError(t, err)
	require.False(t, eof)
	assert.Equal(t, "SECOND", next)
}

// Pushback LIFO property: push(a); push(b) -> next two reads are b, then a.
func TestLineSource_PushbackLIFO(t *testing.T) {
	ls := NewLineSource(strings.NewReader("UNDERLYING\n"), 0)
	ls.Push("a")
	ls.Push("b")

	line, status, err := ls.NextLine()
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	assert.Equal(t, "b", line)

	line, status, err = ls.NextLine()
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	assert.Equal(t, "a", line)

	line, status, err = ls.NextLine()
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	assert.Equal(t, "UNDERLYING", line)
}

// S6. Callback ordering: A, B, C registered on SET; B returns Stop so C is
// never invoked.
func TestSession_CallbackOrderingStop(t *testing.T) {
	s, table := newTestSession(t, "SET x = 1\n")

	var order []string
	require.NoError(t, table.Register("SET", func(s *Session, f []string) (Result, error) {
		order = append(order, "A")
		return ResultOK, nil
	}))
	require.NoError(t, table.Register("SET", func(s *Session, f []string) (Result, error) {
		order = append(order, "B")
		return ResultStop, nil
	}))
	require.NoError(t, table.Register("SET", func(s *Session, f []string) (Result, error) {
		order = append(order, "C")
		return ResultOK, nil
	}))

	line, _, err := s.NextLine()
	require.NoError(t, err)
	_, err = s.ProcessOne(line, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, order)
}

func TestKeywordTable_CallbackTableFull(t *testing.T) {
	table := NewKeywordTable()
	noop := func(s *Session, f []string) (Result, error) { return ResultOK, nil }

	for i := 0; i < MaxCallbacks; i++ {
		require.NoError(t, table.Register("SET", noop))
	}
	err := table.Register("SET", noop)
	require.Error(t, err)
	assert.Equal(t, protoerr.CodeCallbackTableFull, protoerr.CodeOf(err))
	assert.True(t, protoerr.IsTerminal(err))
}

func TestKeywordTable_ReservedNamesDoNotCreateEntries(t *testing.T) {
	table := NewKeywordTable()
	called := false
	require.NoError(t, table.Register(ReservedEOF, func(s *Session, f []string) (Result, error) {
		called = true
		return ResultOK, nil
	}))

	assert.Nil(t, table.Lookup(ReservedEOF))
	require.NotNil(t, table.eofHook)
	_, err := table.eofHook(nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTokenizer_QuotingAndEscaping(t *testing.T) {
	tok := NewTokenizer(false)
	line := []byte(`CHART system.cpu "quoted value" escaped\ space plain`)
	fields := tok.Tokenize(line)

	require.Len(t, fields, 5)
	assert.Equal(t, "CHART", fields[0])
	assert.Equal(t, "system.cpu", fields[1])
	assert.Equal(t, "quoted value", fields[2])
	assert.Equal(t, "escaped space", fields[3])
	assert.Equal(t, "plain", fields[4])
}

func TestTokenizer_MaxWordsConcatenatesTail(t *testing.T) {
	tok := NewTokenizer(false)
	words := make([]string, MaxWords+5)
	for i := range words {
		words[i] = "w"
	}
	line := []byte(strings.Join(words, " "))

	fields := tok.Tokenize(line)
	require.Len(t, fields, MaxWords)
	assert.Equal(t, strings.Join(words[MaxWords-1:], " "), fields[MaxWords-1])
}

func TestLineSource_TruncatesOverLongLines(t *testing.T) {
	long := strings.Repeat("x", 100) + "\nSECOND\n"
	ls := NewLineSource(strings.NewReader(long), 10)

	line, status, err := ls.NextLine()
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	assert.Len(t, line, 10)

	next, status, err := ls.NextLine()
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	assert.Equal(t, "SECOND", next)
}

func TestSession_DeferredCaptureCompleteness(t *testing.T) {
	s, table := newTestSession(t, "FUNCTION_RESULT_BEGIN \"txn-1\" 200 \"text/plain\" 1700000000\nv1.2.3\nFUNCTION_RESULT_END\n")

	var delivered string
	var overflowed bool
	require.NoError(t, table.Register("FUNCTION_RESULT_BEGIN", func(sess *Session, f []string) (Result, error) {
		err := sess.InstallDeferred("FUNCTION_RESULT_END", 0, func(sess *Session, payload []byte, of bool) error {
			delivered = string(payload)
			overflowed = of
			return nil
		})
		return ResultOK, err
	}))

	for {
		line, eof, err := s.NextLine()
		require.NoError(t, err)
		if eof {
			break
		}
		_, err = s.ProcessOne(line, true)
		require.NoError(t, err)
	}

	assert.Equal(t, "v1.2.3\n", delivered)
	assert.False(t, overflowed)
}

func TestSession_DeferredOverflowAborts(t *testing.T) {
	s, table := newTestSession(t, "")
	var overflowed bool

	require.NoError(t, table.Register("BEGINCAP", func(sess *Session, f []string) (Result, error) {
		return ResultOK, sess.InstallDeferred("ENDCAP", 16, func(sess *Session, payload []byte, of bool) error {
			overflowed = of
			return nil
		})
	}))

	_, err := s.ProcessOne("BEGINCAP", true)
	require.NoError(t, err)

	_, err = s.ProcessOne("this line alone exceeds the sixteen byte cap", true)
	require.Error(t, err)
	assert.True(t, overflowed)
}

func TestSession_InstallDeferredTwiceFails(t *testing.T) {
	s, _ := newTestSession(t, "")
	noop := func(sess *Session, payload []byte, of bool) error { return nil }

	require.NoError(t, s.InstallDeferred("END", 0, noop))
	err := s.InstallDeferred("END", 0, noop)
	assert.Error(t, err)
}
