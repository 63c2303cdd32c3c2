// Package prometheus provides Prometheus-backed implementations of the
// metrics.Collector interface.
package prometheus

import (
	"strconv"

	"github.com/nodewatch/plugind/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// collector is the Prometheus implementation of metrics.Collector.
type collector struct {
	workerBusy         *prometheus.GaugeVec
	unknownKeywords    *prometheus.CounterVec
	linesDiscarded     *prometheus.CounterVec
	functionsOpened    prometheus.Counter
	functionsDelivered prometheus.Counter
	functionsTimedOut  prometheus.Counter
	functionsDropped   prometheus.Counter
}

// NewCollector creates a new Prometheus-backed metrics.Collector.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// is safe: every method on a nil collector is a no-op.
func NewCollector() metrics.Collector {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &collector{
		workerBusy: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugind_worker_busy",
				Help: "1 if the worker_job_id is currently processing a line, 0 if idle",
			},
			[]string{"worker_job_id"},
		),
		unknownKeywords: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugind_unknown_keywords_total",
				Help: "Total number of lines discarded for an unrecognized keyword",
			},
			[]string{"keyword"},
		),
		linesDiscarded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugind_lines_discarded_total",
				Help: "Total number of lines discarded, by reason",
			},
			[]string{"reason"},
		),
		functionsOpened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "plugind_functions_opened_total",
				Help: "Total number of FUNCTION calls opened in the in-flight registry",
			},
		),
		functionsDelivered: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "plugind_functions_delivered_total",
				Help: "Total number of function results delivered to a waiting caller",
			},
		),
		functionsTimedOut: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "plugind_functions_timed_out_total",
				Help: "Total number of pending function calls reaped by sweep",
			},
		),
		functionsDropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "plugind_functions_dropped_total",
				Help: "Total number of delivered results with no matching transaction id",
			},
		),
	}
}

func (c *collector) Busy(jobID int) {
	if c == nil {
		return
	}
	c.workerBusy.WithLabelValues(strconv.Itoa(jobID)).Set(1)
}

func (c *collector) Idle(jobID int) {
	if c == nil {
		return
	}
	c.workerBusy.WithLabelValues(strconv.Itoa(jobID)).Set(0)
}

func (c *collector) UnknownKeyword(keyword string) {
	if c == nil {
		return
	}
	c.unknownKeywords.WithLabelValues(keyword).Inc()
}

func (c *collector) LineDiscarded(reason string) {
	if c == nil {
		return
	}
	c.linesDiscarded.WithLabelValues(reason).Inc()
}

func (c *collector) FunctionOpened() {
	if c == nil {
		return
	}
	c.functionsOpened.Inc()
}

func (c *collector) FunctionDelivered() {
	if c == nil {
		return
	}
	c.functionsDelivered.Inc()
}

func (c *collector) FunctionTimedOut() {
	if c == nil {
		return
	}
	c.functionsTimedOut.Inc()
}

func (c *collector) FunctionDropped() {
	if c == nil {
		return
	}
	c.functionsDropped.Inc()
}

var _ metrics.Collector = (*collector)(nil)
