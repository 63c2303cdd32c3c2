// Package plugin implements the Plugin Record & Loop: for each plugin
// stream, a parser session is driven to completion while health counters
// (successful collections, serial failures, the obsolete flag) are
// maintained for the owning supervisor to query.
package plugin

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/nodewatch/plugind/internal/functions"
)

// Capability bits describe optional protocol features a plugin may use.
type Capability uint32

const (
	CapFunctions Capability = 1 << iota
	CapLabels
	CapHostSwitch
)

// Record is the bookkeeping the supervisor keeps for one plugin stream. Its
// mutable fields (counters, enabled/obsolete flags) are written only by the
// owning Loop and read by other goroutines (the Control API, the
// supervisor), so access goes through a mutex except for Obsolete, which is
// a one-shot flag read far more often than it is written and so is kept as
// an atomic bool for lock-free reads.
//
// Once Obsolete is set, the record must not be mutated further and is
// reclaimable by the owning supervisor.
type Record struct {
	ID           string
	Filename     string
	FullPath     string
	CommandLine  string
	PID          int
	UpdateEvery  int
	Capabilities Capability

	obsolete atomic.Bool

	// wireMu guards functions/writer, set once by Run before the read
	// loop starts and read thereafter by the Control API's function
	// invocation handler - never by the loop goroutine itself.
	wireMu    sync.RWMutex
	functions *functions.Registry
	writer    io.Writer

	mu                    sync.RWMutex
	successfulCollections uint64
	serialFailures        int
	enabled               bool
}

// AttachWire gives the record the in-flight function registry and the
// writer used to send FUNCTION requests to the plugin's stdin, so the
// Control API can invoke functions against a running session by id. Called
// once by Run before the read loop starts.
func (r *Record) AttachWire(fn *functions.Registry, w io.Writer) {
	r.wireMu.Lock()
	defer r.wireMu.Unlock()
	r.functions = fn
	r.writer = w
}

// Functions returns the in-flight function registry for this plugin's
// session, or nil if the record has not been wired yet (or ever, outside
// the Run loop).
func (r *Record) Functions() *functions.Registry {
	r.wireMu.RLock()
	defer r.wireMu.RUnlock()
	return r.functions
}

// CommandWriter returns where a FUNCTION request line should be written to
// reach this plugin, or nil if no writable command channel is attached.
// Spawning and piping the plugin process itself is outside this package's
// scope; the owner of the process supplies the writer via AttachWire.
func (r *Record) CommandWriter() io.Writer {
	r.wireMu.RLock()
	defer r.wireMu.RUnlock()
	return r.writer
}

// NewRecord creates a Record in the enabled, non-obsolete state.
func NewRecord(id, filename, fullPath, commandLine string, updateEvery int) *Record {
	return &Record{
		ID:          id,
		Filename:    filename,
		FullPath:    fullPath,
		CommandLine: commandLine,
		UpdateEvery: updateEvery,
		enabled:     true,
	}
}

// Obsolete reports whether the record has been marked obsolete. Once true,
// it never becomes false again.
func (r *Record) Obsolete() bool {
	return r.obsolete.Load()
}

// MarkObsolete sets the one-shot obsolete flag and disables the record.
// Safe to call from any goroutine, including one other than the Loop's
// own, to request cancellation.
func (r *Record) MarkObsolete() {
	r.obsolete.Store(true)
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
}

// Enabled reports whether the record is currently enabled.
func (r *Record) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// SuccessfulCollections returns the current successful-collection count.
func (r *Record) SuccessfulCollections() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.successfulCollections
}

// SerialFailures returns the current consecutive-failure count.
func (r *Record) SerialFailures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.serialFailures
}

// recordRunOutcome updates the health counters after one loop iteration.
// producedSamples indicates whether any chart batch was committed during
// the run; threshold is Config.SerialFailureThreshold.
func (r *Record) recordRunOutcome(producedSamples bool, threshold int) (becameObsolete bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if producedSamples {
		r.successfulCollections++
		r.serialFailures = 0
		return false
	}

	r.serialFailures++
	if threshold > 0 && r.serialFailures >= threshold {
		r.enabled = false
		r.obsolete.Store(true)
		return true
	}
	return false
}

// Snapshot is an immutable copy of a Record's externally visible state, for
// the Control API to serialize without holding the Record's lock.
type Snapshot struct {
	ID                    string `json:"id"`
	Filename              string `json:"filename"`
	FullPath              string `json:"full_path"`
	PID                   int    `json:"pid,omitempty"`
	UpdateEvery           int    `json:"update_every"`
	SuccessfulCollections uint64 `json:"successful_collections"`
	SerialFailures        int    `json:"serial_failures"`
	Enabled               bool   `json:"enabled"`
	Obsolete              bool   `json:"obsolete"`
}

// Snapshot takes a consistent point-in-time copy of the record's state.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		ID:                    r.ID,
		Filename:              r.Filename,
		FullPath:              r.FullPath,
		PID:                   r.PID,
		UpdateEvery:           r.UpdateEvery,
		SuccessfulCollections: r.successfulCollections,
		SerialFailures:        r.serialFailures,
		Enabled:               r.enabled,
		Obsolete:              r.obsolete.Load(),
	}
}
