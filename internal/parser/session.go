// Package parser implements the collector protocol's incremental line
// parser and keyword/action dispatcher: the line source with its pushback
// stack, the tokenizer, the keyword table, the deferred multi-line capture
// state machine, and the process_one dispatch loop.
package parser

import (
	"context"
	"io"

	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/protoerr"
	"github.com/nodewatch/plugind/internal/telemetry"
	"github.com/nodewatch/plugind/pkg/metrics"
)

// Status is the outcome of a single process_one invocation.
type Status int

const (
	// StatusOK indicates the line was handled (or ignored as a repeat
	// call with no explicit input); the session should keep reading.
	StatusOK Status = iota
	// StatusStop indicates a callback requested the session stop; the
	// loop should break without treating this as an error.
	StatusStop
	// StatusError indicates a Resource, Transport, or Protocol-abuse
	// error occurred; the loop must terminate the session.
	StatusError
)

// Session owns everything scoped to one plugin stream: the line buffer,
// pushback stack (via LineSource), keyword table, deferred-capture state,
// and a user-opaque handle passed to every callback. A Session is used by
// exactly one goroutine at a time; it performs no internal locking.
type Session struct {
	Handle interface{}

	// PluginID labels every dispatch span this session starts. Set by the
	// Plugin Record & Loop before the first NextLine call; left empty in
	// standalone tests, where it's a harmless blank attribute.
	PluginID string

	source   *LineSource
	table    *KeywordTable
	tok      *Tokenizer
	deferred *deferredState
	metrics  metrics.Collector

	lineNo    uint64
	lastLine  string // most recent line returned by NextLine
	processed bool   // "already processed" guard, set after a no-input dispatch
	stop      bool   // set by RequestStop; the next dispatch returns StatusStop
}

// NewSession creates a parser session reading from r, dispatching through
// table, and reporting worker/error telemetry to collector (nil is a valid
// zero-overhead no-op collector).
func NewSession(r io.Reader, table *KeywordTable, lineMax int, collector metrics.Collector) *Session {
	return &Session{
		source:  NewLineSource(r, lineMax),
		table:   table,
		tok:     NewTokenizer(true),
		metrics: collector,
	}
}

// Push re-injects a line for reprocessing; see LineSource.Push.
func (s *Session) Push(line string) {
	s.source.Push(line)
}

// LineNo returns the number of the most recently read line.
func (s *Session) LineNo() uint64 {
	return s.lineNo
}

// NextLine reads the next line from the underlying source or pushback
// stack. It is exposed so the Plugin Record & Loop can drive the
// next_line -> process_one cycle. The _read hook, when registered,
// observes every line that came off the underlying reader (pushed-back
// lines are not re-observed); the _eof hook fires once at end of input
// and its outcome is logged.
func (s *Session) NextLine() (line string, eof bool, err error) {
	text, status, rerr := s.source.NextLine()
	switch status {
	case ReadEOF:
		if s.table.eofHook != nil {
			result, hookErr := s.table.eofHook(s, nil)
			logger.Debug("eof hook fired",
				logger.PluginID(s.PluginID), "result", int(result), logger.Err(hookErr))
		}
		return "", true, nil
	case ReadError:
		return "", false, protoerr.NewReadError(s.lineNo, rerr)
	default:
		fromReader := s.source.LineNo() != s.lineNo
		s.lineNo = s.source.LineNo()
		s.lastLine = text
		s.processed = false
		if fromReader && s.table.readHook != nil {
			if _, hookErr := s.table.readHook(s, []string{text}); hookErr != nil {
				logger.Debug("read hook rejected line",
					logger.PluginID(s.PluginID), logger.LineNo(s.lineNo), logger.Err(hookErr))
			}
		}
		return text, false, nil
	}
}

// ProcessOne is the dispatcher's entry point: it tokenizes one line,
// resolves the keyword, and runs its callback chain (or routes the raw
// line into an active deferred capture). hasInput == false means "use
// the session's own most recently read line" (input is ignored); in that
// mode, if the session already dispatched that line (the already-processed
// guard), ProcessOne returns immediately with StatusOK. The guard is
// cleared by the next successful NextLine. Explicit input always executes.
func (s *Session) ProcessOne(input string, hasInput bool) (Status, error) {
	line := input
	if !hasInput {
		if s.processed {
			return StatusOK, nil
		}
		s.processed = true
		line = s.lastLine
	}

	if s.deferred != nil {
		if _, err := s.feedDeferred(line); err != nil {
			return StatusError, err
		}
		return StatusOK, nil
	}

	buf := []byte(line)
	fields := s.tok.Tokenize(buf)
	if len(fields) == 0 {
		return StatusOK, nil
	}

	head := fields[0]
	entry := s.table.Lookup(head)
	if entry == nil {
		s.metricsUnknownKeyword(head)
		if s.table.unknownHook != nil {
			if _, err := s.table.unknownHook(s, fields); err != nil {
				s.metricsLineDiscarded("unknown_keyword")
				return StatusOK, nil
			}
		} else {
			s.metricsLineDiscarded("unknown_keyword")
		}
		return StatusOK, nil
	}

	_, span := telemetry.StartDispatchSpan(context.Background(), s.PluginID, head, s.lineNo, telemetry.WorkerJob(entry.workerJobID))

	s.metricsBusy(entry.workerJobID)
	status, err := s.runCallbacks(entry, fields)
	s.metricsIdle(entry.workerJobID)

	if err != nil {
		span.RecordError(err)
	}
	span.End()

	if s.stop && status == StatusOK {
		return StatusStop, err
	}
	return status, err
}

// RequestStop asks the owning loop to end the session cleanly after the
// current line: the ProcessOne call that dispatched the requesting callback
// returns StatusStop instead of StatusOK. Used by DISABLE.
func (s *Session) RequestStop() {
	s.stop = true
}

func (s *Session) runCallbacks(entry *keywordEntry, fields []string) (Status, error) {
	for _, cb := range entry.callbacks {
		result, err := cb(s, fields)
		switch result {
		case ResultStop:
			return StatusOK, nil
		case ResultError:
			s.metricsLineDiscarded(discardReason(err))
			if protoerr.IsTerminal(err) {
				return StatusError, err
			}
			return StatusOK, err
		}
		if err != nil {
			s.metricsLineDiscarded(discardReason(err))
			if protoerr.IsTerminal(err) {
				return StatusError, err
			}
			return StatusOK, err
		}
	}
	return StatusOK, nil
}

func discardReason(err error) string {
	if err == nil {
		return ""
	}
	if pe, ok := err.(*protoerr.Error); ok {
		return pe.Code.String()
	}
	return "error"
}

// Register installs cb for keyword name. See KeywordTable.Register.
func (s *Session) Register(name string, cb Callback) error {
	return s.table.Register(name, cb)
}

// InstallDeferred arms a deferred multi-line capture. See installDeferred.
func (s *Session) InstallDeferred(endKeyword string, capBytes int, action CompletionAction) error {
	return s.installDeferred(endKeyword, capBytes, action)
}

func (s *Session) metricsBusy(jobID int) {
	if s.metrics != nil {
		s.metrics.Busy(jobID)
	}
}

func (s *Session) metricsIdle(jobID int) {
	if s.metrics != nil {
		s.metrics.Idle(jobID)
	}
}

func (s *Session) metricsUnknownKeyword(keyword string) {
	if s.metrics != nil {
		s.metrics.UnknownKeyword(keyword)
	}
}

func (s *Session) metricsLineDiscarded(reason string) {
	if s.metrics != nil {
		s.metrics.LineDiscarded(reason)
	}
}
