// Package memsink provides an in-memory sink.Sink implementation that
// records every call it receives, for use in parser and dispatcher tests.
package memsink

import (
	"sync"

	"github.com/nodewatch/plugind/internal/sink"
)

// Call records a single invocation made against a Sink method.
type Call struct {
	Method string
	Args   []interface{}
}

// Sink is an in-memory reference implementation of sink.Sink. Every method
// call is appended to Calls in order; nothing is validated or aggregated, so
// tests can assert on the exact call sequence the dispatcher produced.
type Sink struct {
	mu    sync.Mutex
	Calls []Call

	// Disabled is set to true once Disable has been called.
	Disabled bool
}

// New creates an empty Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) record(method string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, Call{Method: method, Args: args})
}

// CallsFor returns the recorded calls for a given method name, in order.
func (s *Sink) CallsFor(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Sink) CreateChart(host, typeID, name, title, units, family, context string,
	chartType string, priority, updateEvery int, options string) error {
	s.record("CreateChart", host, typeID, name, title, units, family, context, chartType, priority, updateEvery, options)
	return nil
}

func (s *Sink) CreateDimension(chartID, dimID, name, algorithm string, multiplier, divisor int64, options string) error {
	s.record("CreateDimension", chartID, dimID, name, algorithm, multiplier, divisor, options)
	return nil
}

func (s *Sink) BeginBatch(chartID string, microseconds int64) error {
	s.record("BeginBatch", chartID, microseconds)
	return nil
}

func (s *Sink) SetDimension(dimID string, value int64) error {
	s.record("SetDimension", dimID, value)
	return nil
}

func (s *Sink) CommitBatch() error {
	s.record("CommitBatch")
	return nil
}

func (s *Sink) DiscardBatch() error {
	s.record("DiscardBatch")
	return nil
}

func (s *Sink) SetVariable(scope sink.VariableScope, name string, value float64) error {
	s.record("SetVariable", scope, name, value)
	return nil
}

func (s *Sink) StageLabel(key, value, source string) error {
	s.record("StageLabel", key, value, source)
	return nil
}

func (s *Sink) CommitLabels(overwrite bool) error {
	s.record("CommitLabels", overwrite)
	return nil
}

func (s *Sink) StageChartLabel(key, value, source string) error {
	s.record("StageChartLabel", key, value, source)
	return nil
}

func (s *Sink) CommitChartLabels() error {
	s.record("CommitChartLabels")
	return nil
}

func (s *Sink) SwitchHost(machineGUID, hostname, registryHostname string, updateEvery int, os, timezone, tags string) error {
	s.record("SwitchHost", machineGUID, hostname, registryHostname, updateEvery, os, timezone, tags)
	return nil
}

func (s *Sink) Disable() error {
	s.mu.Lock()
	s.Disabled = true
	s.mu.Unlock()
	s.record("Disable")
	return nil
}

var _ sink.Sink = (*Sink)(nil)
