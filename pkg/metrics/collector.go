package metrics

// Collector provides observability for the protocol dispatcher and the
// in-flight function registry.
//
// Implementations can collect busy/idle worker accounting, discard/error
// counters, and function lifecycle counts. This interface is optional -
// pass nil to disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	collector := prometheus.NewCollector()
//	session := parser.NewSession(reader, table, lineMax, collector)
//
//	// Without metrics (pass nil for zero overhead)
//	session := parser.NewSession(reader, table, lineMax, nil)
type Collector interface {
	// Busy marks a worker_job_id as actively processing a line, emitted
	// before a keyword's callbacks run.
	Busy(jobID int)

	// Idle marks a worker_job_id as no longer processing, emitted after a
	// keyword's callbacks return.
	Idle(jobID int)

	// UnknownKeyword records a line whose first token had no registered
	// callback.
	UnknownKeyword(keyword string)

	// LineDiscarded records a line dropped for a Framing or Semantic
	// reason (e.g. "too_few_fields", "malformed_number", "semantic_reject").
	LineDiscarded(reason string)

	// FunctionOpened records a successful In-Flight Function Registry open.
	FunctionOpened()

	// FunctionDelivered records a result delivered to a pending function call.
	FunctionDelivered()

	// FunctionTimedOut records a pending function call reaped by sweep.
	FunctionTimedOut()

	// FunctionDropped records a delivered result with no matching
	// transaction id (late or unknown).
	FunctionDropped()
}
