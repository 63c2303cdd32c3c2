// Package protoerr provides the typed error taxonomy for the collector
// protocol parser: framing, semantic, resource, transport, and protocol-abuse
// classes, matching the dispatcher's discard-vs-terminate decision.
package protoerr

import "fmt"

// ErrorCode represents the category of protocol error that occurred.
type ErrorCode int

const (
	// CodeUnknownKeyword indicates the first token of a line has no
	// registered callback. The line is discarded; the session continues.
	CodeUnknownKeyword ErrorCode = iota + 1

	// CodeTooFewFields indicates a keyword's callback required more
	// fields than the line supplied. The line is discarded.
	CodeTooFewFields

	// CodeMalformedNumber indicates a field expected to parse as a number
	// (a dimension value, a priority, a timestamp) did not. The line is
	// discarded.
	CodeMalformedNumber

	// CodeSemanticReject indicates a callback rejected the line on
	// domain grounds (e.g. SET before BEGIN). The line is discarded.
	CodeSemanticReject

	// CodeDeferredOverflow indicates a FUNCTION_RESULT_BEGIN capture grew
	// past the configured buffer cap. Resource-class: terminates the session.
	CodeDeferredOverflow

	// CodeCallbackTableFull indicates a keyword's callback table reached
	// its configured maximum. Resource-class: terminates the session.
	CodeCallbackTableFull

	// CodeReadError indicates the underlying line source returned an I/O
	// error other than EOF. Transport-class: terminates the session.
	CodeReadError

	// CodeEOF indicates the underlying line source reached end of input.
	// Transport-class: terminates the session, but is not itself a failure.
	CodeEOF

	// CodeProtocolAbuse indicates a structural violation of the deferred
	// capture state: a second deferred capture installed while one is still
	// active. Protocol-abuse class: terminates the session.
	CodeProtocolAbuse
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeUnknownKeyword:
		return "UnknownKeyword"
	case CodeTooFewFields:
		return "TooFewFields"
	case CodeMalformedNumber:
		return "MalformedNumber"
	case CodeSemanticReject:
		return "SemanticReject"
	case CodeDeferredOverflow:
		return "DeferredOverflow"
	case CodeCallbackTableFull:
		return "CallbackTableFull"
	case CodeReadError:
		return "ReadError"
	case CodeEOF:
		return "EOF"
	case CodeProtocolAbuse:
		return "ProtocolAbuse"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Terminal returns true if an error of this code must terminate the owning
// parser session rather than simply discarding the current line. This is
// exactly the Resource / Transport / Protocol-abuse class from the error
// handling design; Framing and Semantic errors are never terminal. CodeEOF
// is deliberately excluded: end of input ends the read loop through its own
// branch (next_line returning Eof), not through this error taxonomy.
func (c ErrorCode) Terminal() bool {
	switch c {
	case CodeDeferredOverflow, CodeCallbackTableFull, CodeReadError, CodeProtocolAbuse:
		return true
	default:
		return false
	}
}

// Error is a protocol error carrying its classification, a human-readable
// message, and the keyword and line number it was raised against, when known.
type Error struct {
	Code    ErrorCode
	Message string
	Keyword string
	LineNo  uint64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s: %s (keyword: %s, line: %d)", e.Code, e.Message, e.Keyword, e.LineNo)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewUnknownKeywordError creates an UnknownKeyword error.
func NewUnknownKeywordError(keyword string, lineNo uint64) *Error {
	return &Error{
		Code:    CodeUnknownKeyword,
		Message: "no callback registered for keyword",
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewTooFewFieldsError creates a TooFewFields error.
func NewTooFewFieldsError(keyword string, lineNo uint64, want, got int) *Error {
	return &Error{
		Code:    CodeTooFewFields,
		Message: fmt.Sprintf("expected at least %d fields, got %d", want, got),
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewMalformedNumberError creates a MalformedNumber error.
func NewMalformedNumberError(keyword string, lineNo uint64, field string) *Error {
	return &Error{
		Code:    CodeMalformedNumber,
		Message: fmt.Sprintf("field %q is not a valid number", field),
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewSemanticRejectError creates a SemanticReject error.
func NewSemanticRejectError(keyword string, lineNo uint64, reason string) *Error {
	return &Error{
		Code:    CodeSemanticReject,
		Message: reason,
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewDeferredOverflowError creates a DeferredOverflow error.
func NewDeferredOverflowError(keyword string, lineNo uint64, capBytes int) *Error {
	return &Error{
		Code:    CodeDeferredOverflow,
		Message: fmt.Sprintf("deferred capture exceeded %d byte cap", capBytes),
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewCallbackTableFullError creates a CallbackTableFull error.
func NewCallbackTableFullError(keyword string, lineNo uint64, max int) *Error {
	return &Error{
		Code:    CodeCallbackTableFull,
		Message: fmt.Sprintf("callback table full (max %d)", max),
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// NewReadError creates a ReadError wrapping the underlying I/O failure.
func NewReadError(lineNo uint64, cause error) *Error {
	return &Error{
		Code:    CodeReadError,
		Message: cause.Error(),
		LineNo:  lineNo,
	}
}

// NewEOFError creates an EOF error.
func NewEOFError(lineNo uint64) *Error {
	return &Error{
		Code:    CodeEOF,
		Message: "end of input",
		LineNo:  lineNo,
	}
}

// NewProtocolAbuseError creates a ProtocolAbuse error.
func NewProtocolAbuseError(keyword string, lineNo uint64, reason string) *Error {
	return &Error{
		Code:    CodeProtocolAbuse,
		Message: reason,
		Keyword: keyword,
		LineNo:  lineNo,
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// IsTerminal returns true if err is a protocol Error whose code must
// terminate the owning session.
func IsTerminal(err error) bool {
	if pe, ok := err.(*Error); ok {
		return pe.Code.Terminal()
	}
	return false
}

// CodeOf returns the ErrorCode of err if it is a protocol Error, or 0 otherwise.
func CodeOf(err error) ErrorCode {
	if pe, ok := err.(*Error); ok {
		return pe.Code
	}
	return 0
}
