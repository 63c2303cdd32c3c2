package parser

import "github.com/nodewatch/plugind/internal/protoerr"

// DeferredBufferCap is the hard cap on an accumulating deferred-capture
// buffer; exceeding it aborts the capture with a Resource error.
const DeferredBufferCap = 10 << 20 // 10 MiB

// CompletionAction is invoked when a deferred capture ends, either because
// the end keyword was observed (overflowed == false, payload holds the
// accumulated bytes) or because the buffer exceeded its cap (overflowed ==
// true, payload holds whatever had been captured so far).
type CompletionAction func(s *Session, payload []byte, overflowed bool) error

// deferredState tracks an in-progress multi-line capture. Exactly one may
// be active per session.
type deferredState struct {
	endKeyword string
	buf        []byte
	cap        int
	action     CompletionAction
}

// installDeferred arms a deferred capture. Installing a second one while
// one is already active is a programmer error.
func (s *Session) installDeferred(endKeyword string, capBytes int, action CompletionAction) error {
	if s.deferred != nil {
		return protoerr.NewProtocolAbuseError(endKeyword, s.lineNo, "deferred capture already active")
	}
	if capBytes <= 0 {
		capBytes = DeferredBufferCap
	}
	s.deferred = &deferredState{endKeyword: endKeyword, cap: capBytes, action: action}
	return nil
}

// feedDeferred routes one raw line into the active deferred capture. It
// returns true if the line completed or aborted the capture (i.e. the
// deferred state is no longer active after this call).
func (s *Session) feedDeferred(line string) (done bool, err error) {
	d := s.deferred
	head, _ := peekFirstToken(line)
	if head == d.endKeyword {
		payload := d.buf
		s.deferred = nil
		if cbErr := d.action(s, payload, false); cbErr != nil {
			return true, cbErr
		}
		return true, nil
	}

	needed := len(d.buf) + len(line) + 1
	if needed > d.cap {
		payload := d.buf
		s.deferred = nil
		_ = d.action(s, payload, true)
		return true, protoerr.NewDeferredOverflowError(d.endKeyword, s.lineNo, d.cap)
	}

	d.buf = append(d.buf, line...)
	d.buf = append(d.buf, '\n')
	return false, nil
}

// peekFirstToken returns the first whitespace-delimited token of line
// without mutating or allocating beyond the single returned string, so the
// deferred branch can check for the end keyword without destructive
// tokenization.
func peekFirstToken(line string) (string, string) {
	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	start := i
	for i < len(line) && !isSpace(line[i]) {
		i++
	}
	return line[start:i], line[i:]
}
