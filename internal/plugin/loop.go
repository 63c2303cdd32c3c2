package plugin

import (
	"context"
	"fmt"
	"io"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/history"
	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/memsink"
	"github.com/nodewatch/plugind/internal/parser"
	"github.com/nodewatch/plugind/internal/protoerr"
	"github.com/nodewatch/plugind/internal/sink"
	"github.com/nodewatch/plugind/internal/telemetry"
	"github.com/nodewatch/plugind/pkg/metrics"
)

// LoopConfig parameterizes a single Run of the Plugin Record & Loop.
type LoopConfig struct {
	LineMax                int
	DeferredBufferCap      int
	SerialFailureThreshold int
	Metrics                metrics.Collector

	// History, when non-nil, receives a durable event whenever this run
	// pushes the record's serial-failure streak to the configured
	// threshold and marks it obsolete. Best-effort: a write failure is
	// logged, never propagated.
	History *history.Store

	// CommandWriter, when non-nil, is where a FUNCTION request line is
	// written to reach this plugin; wired onto rec so the Control API can
	// invoke functions against the running session. Spawning the plugin
	// process and owning its stdin is outside this package.
	CommandWriter io.Writer
}

// Run constructs a parser session over r and drives next_line ->
// process_one until Stop, EOF, a fatal (Resource/Transport/Protocol-abuse)
// error, or rec.Obsolete() becomes true, checked at least once per
// dispatch. On break, the record's health counters are
// updated and, if the serial-failure threshold is crossed, the record is
// marked obsolete.
//
// snk is the time-series sink the standard keyword set drives; pass a
// memsink.Sink in tests. fn is the in-flight function registry FUNCTION /
// FUNCTION_RESULT_BEGIN correlate against.
func Run(rec *Record, r io.Reader, snk sink.Sink, fn *functions.Registry, cfg LoopConfig) error {
	if snk == nil {
		snk = memsink.New()
	}

	rec.AttachWire(fn, cfg.CommandWriter)

	_, runSpan := telemetry.StartPluginRunSpan(context.Background(), rec.ID, rec.FullPath)
	defer runSpan.End()

	table := parser.NewKeywordTable()
	dctx := &parser.DispatchContext{Sink: snk, Functions: fn, DeferredCap: cfg.DeferredBufferCap}
	if err := parser.RegisterStandardKeywords(table, dctx); err != nil {
		return err
	}

	session := parser.NewSession(r, table, cfg.LineMax, cfg.Metrics)
	session.Handle = dctx
	session.PluginID = rec.ID

	for {
		if rec.Obsolete() {
			logger.Info("plugin obsolete, stopping loop", logger.PluginID(rec.ID))
			break
		}

		line, eof, err := session.NextLine()
		if err != nil {
			logger.Error("plugin read error", logger.PluginID(rec.ID), logger.Err(err))
			break
		}
		if eof {
			break
		}

		status, procErr := session.ProcessOne(line, true)
		if procErr != nil && protoerr.IsTerminal(procErr) {
			logger.Error("plugin session terminated", logger.PluginID(rec.ID), logger.LineNo(session.LineNo()), logger.Err(procErr))
			break
		}
		if status == parser.StatusStop {
			break
		}
	}

	if fn != nil {
		if n := fn.CancelAll(); n > 0 {
			logger.Info("cancelled in-flight function calls on session end",
				logger.PluginID(rec.ID), "cancelled", n)
		}
	}

	if rec.recordRunOutcome(dctx.ProducedSample(), cfg.SerialFailureThreshold) {
		logger.Warn("plugin marked obsolete after serial failures",
			logger.PluginID(rec.ID), "serial_failures", rec.SerialFailures())
		recordObsolescence(cfg.History, rec)
	}

	return nil
}

// recordObsolescence durably logs the serial-failure streak and the
// resulting obsolescence so an operator can audit the decision after a
// process restart. Best-effort: a write failure is logged, not propagated,
// since the dispatch loop has already ended by the time this runs.
func recordObsolescence(hist *history.Store, rec *Record) {
	if hist == nil {
		return
	}
	detail := fmt.Sprintf("%d consecutive runs with no committed sample", rec.SerialFailures())
	if err := hist.Record(rec.ID, history.KindSerialFailureThreshold, detail); err != nil {
		logger.Error("failed to record serial-failure history event", logger.PluginID(rec.ID), logger.Err(err))
	}
	if err := hist.Record(rec.ID, history.KindObsolete, detail); err != nil {
		logger.Error("failed to record obsolescence history event", logger.PluginID(rec.ID), logger.Err(err))
	}
}
