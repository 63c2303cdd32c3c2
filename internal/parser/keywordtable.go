package parser

import "github.com/nodewatch/plugind/internal/protoerr"

// MaxCallbacks bounds the number of callbacks a single keyword may
// accumulate across repeated Register calls.
const MaxCallbacks = 20

// Reserved keyword names that never create a regular keyword entry; they
// replace dedicated session hooks instead (see KeywordTable.readHook,
// eofHook, unknownHook).
const (
	ReservedRead    = "_read"
	ReservedEOF     = "_eof"
	ReservedUnknown = "_unknown"
)

// Result is the outcome a Callback returns for a dispatched line.
type Result int

const (
	// ResultOK continues to the next callback for this keyword, if any.
	ResultOK Result = iota
	// ResultStop halts remaining callbacks for this line but is not an error.
	ResultStop
	// ResultError halts remaining callbacks for this line. The error is
	// counted as a discarded line and returned from ProcessOne; the session
	// continues unless protoerr.IsTerminal reports it. The dispatcher does
	// not log it.
	ResultError
)

// Callback processes one dispatched line. fields is the tokenized line,
// fields[0] being the keyword itself.
type Callback func(s *Session, fields []string) (Result, error)

// keywordEntry is one row of the keyword table.
type keywordEntry struct {
	name        string
	callbacks   []Callback
	workerJobID int
}

// KeywordTable maps keyword strings to ordered callback lists. Construction
// happens during session init and the table may be extended up until the
// read loop begins; concurrent mutation during dispatch is forbidden.
type KeywordTable struct {
	entries     map[string]*keywordEntry
	nextJobID   int
	readHook    Callback
	eofHook     Callback
	unknownHook Callback
}

// NewKeywordTable creates an empty table.
func NewKeywordTable() *KeywordTable {
	return &KeywordTable{entries: make(map[string]*keywordEntry)}
}

// Register appends callback to the entry for name, creating it on first
// use and assigning it a fresh worker_job_id. The three reserved names
// install dedicated session hooks instead of creating a table entry.
//
// Returns a Resource-class protoerr.Error if the keyword's callback table
// has reached MaxCallbacks; registration happens before any line is read,
// so the error carries line number zero.
func (t *KeywordTable) Register(name string, cb Callback) error {
	switch name {
	case ReservedRead:
		t.readHook = cb
		return nil
	case ReservedEOF:
		t.eofHook = cb
		return nil
	case ReservedUnknown:
		t.unknownHook = cb
		return nil
	}

	entry, ok := t.entries[name]
	if !ok {
		t.nextJobID++
		entry = &keywordEntry{name: name, workerJobID: t.nextJobID}
		t.entries[name] = entry
	}

	if len(entry.callbacks) >= MaxCallbacks {
		return protoerr.NewCallbackTableFullError(name, 0, MaxCallbacks)
	}

	entry.callbacks = append(entry.callbacks, cb)
	return nil
}

// Lookup returns the entry for name, or nil if none is registered.
func (t *KeywordTable) Lookup(name string) *keywordEntry {
	return t.entries[name]
}

// Destroy frees all entries and hooks, leaving the table empty.
func (t *KeywordTable) Destroy() {
	t.entries = make(map[string]*keywordEntry)
	t.readHook = nil
	t.eofHook = nil
	t.unknownHook = nil
}
