// Package functions implements the in-flight function call registry that
// correlates a FUNCTION request with its FUNCTION_RESULT_BEGIN...END
// response across the asynchronous boundary between the Control API and a
// plugin session.
package functions

import (
	"sync"
	"time"

	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/pkg/metrics"
)

// DefaultTimeout is used when the caller does not specify one.
const DefaultTimeout = 10 * time.Second

// Status is the lifecycle state of an in-flight function call.
type Status int

const (
	Pending Status = iota
	Completed
	TimedOut
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the decoded payload of a delivered function response.
type Result struct {
	StatusCode  int
	ContentType string
	ExpiresAt   time.Time
	Payload     []byte
}

// entry is one outstanding function call.
type entry struct {
	transactionID string
	deadline      time.Time
	status        Status
	resultCh      chan Result
}

var errAlreadyExists = &alreadyExistsError{}

type alreadyExistsError struct{}

func (*alreadyExistsError) Error() string { return "transaction id already exists" }

// IsAlreadyExists reports whether err is the AlreadyExists sentinel Open returns.
func IsAlreadyExists(err error) bool {
	_, ok := err.(*alreadyExistsError)
	return ok
}

// Registry tracks Pending/Completed/TimedOut/Cancelled function calls keyed
// by transaction id. It is safe for concurrent use; sweep may be driven by
// a separate timer goroutine while Open is called from plugin session
// goroutines (FUNCTION) and Control API goroutines (Invoke), and Deliver
// from plugin session goroutines.
type Registry struct {
	mu               sync.Mutex
	entries          map[string]*entry
	smallestDeadline time.Time
	metrics          metrics.Collector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// WithCollector attaches c for function lifecycle counters (opened,
// delivered, timed out, dropped) and returns the registry for chaining.
// A nil collector disables counting with zero overhead.
func (r *Registry) WithCollector(c metrics.Collector) *Registry {
	r.metrics = c
	return r
}

// Open creates a Pending entry for transactionID with the given timeout
// (DefaultTimeout if timeout <= 0) and returns a channel the caller can
// receive the eventual Result from. Rejects a duplicate transaction id.
func (r *Registry) Open(transactionID string, timeout time.Duration) (<-chan Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[transactionID]; exists {
		return nil, errAlreadyExists
	}

	e := &entry{
		transactionID: transactionID,
		deadline:      time.Now().Add(timeout),
		status:        Pending,
		resultCh:      make(chan Result, 1),
	}
	r.entries[transactionID] = e
	r.recomputeSmallestDeadlineLocked()

	if r.metrics != nil {
		r.metrics.FunctionOpened()
	}
	return e.resultCh, nil
}

// Deliver transitions transactionID from Pending to Completed and sends
// result to its waiter. If the transaction is unknown (late, or never
// opened), the payload is dropped and ok is false.
func (r *Registry) Deliver(transactionID string, statusCode int, contentType string, expiresAt time.Time, payload []byte) (ok bool) {
	r.mu.Lock()
	e, exists := r.entries[transactionID]
	if !exists || e.status != Pending {
		c := r.metrics
		r.mu.Unlock()
		if c != nil {
			c.FunctionDropped()
		}
		return false
	}
	e.status = Completed
	delete(r.entries, transactionID)
	r.recomputeSmallestDeadlineLocked()
	c := r.metrics
	r.mu.Unlock()

	if c != nil {
		c.FunctionDelivered()
	}
	e.resultCh <- Result{
		StatusCode:  statusCode,
		ContentType: contentType,
		ExpiresAt:   expiresAt,
		Payload:     payload,
	}
	close(e.resultCh)
	return true
}

// Cancel transitions transactionID from Pending to Cancelled. Returns false
// if the transaction is unknown or already resolved.
func (r *Registry) Cancel(transactionID string) bool {
	r.mu.Lock()
	e, exists := r.entries[transactionID]
	if !exists || e.status != Pending {
		r.mu.Unlock()
		return false
	}
	e.status = Cancelled
	delete(r.entries, transactionID)
	r.recomputeSmallestDeadlineLocked()
	r.mu.Unlock()

	close(e.resultCh)
	return true
}

// CancelAll transitions every Pending entry to Cancelled, closing its
// result channel so each waiter is notified immediately. Called when the
// owning plugin session ends (obsolete, EOF, terminal error) so a caller
// blocked on a function result doesn't hang until its own deadline.
// Returns the number of entries cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := 0
	for id, e := range r.entries {
		if e.status != Pending {
			continue
		}
		e.status = Cancelled
		close(e.resultCh)
		delete(r.entries, id)
		cancelled++
		logger.Debug("function call cancelled with session", logger.TransactionID(id))
	}
	r.recomputeSmallestDeadlineLocked()
	return cancelled
}

// Sweep transitions every Pending entry with deadline <= now to TimedOut,
// closing its result channel with no value so the waiter observes a
// timeout. Returns the number of entries reaped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for id, e := range r.entries {
		if e.status != Pending || now.Before(e.deadline) {
			continue
		}
		e.status = TimedOut
		close(e.resultCh)
		delete(r.entries, id)
		reaped++
		if r.metrics != nil {
			r.metrics.FunctionTimedOut()
		}
		logger.Debug("function call timed out", logger.TransactionID(id))
	}
	r.recomputeSmallestDeadlineLocked()
	return reaped
}

// SmallestDeadline returns the earliest deadline among Pending entries, and
// false if there are none. Schedulers can use this to avoid waking
// spuriously between sweeps.
func (r *Registry) SmallestDeadline() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.smallestDeadline.IsZero() {
		return time.Time{}, false
	}
	return r.smallestDeadline, true
}

// Len returns the number of currently Pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) recomputeSmallestDeadlineLocked() {
	var smallest time.Time
	for _, e := range r.entries {
		if e.status != Pending {
			continue
		}
		if smallest.IsZero() || e.deadline.Before(smallest) {
			smallest = e.deadline
		}
	}
	r.smallestDeadline = smallest
}
