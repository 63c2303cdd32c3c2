package parser

import (
	"strconv"
	"time"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/protoerr"
	"github.com/nodewatch/plugind/internal/sink"
)

// DispatchContext is the opaque handle a Session carries for the standard
// keyword set: the sink every chart/dimension/sample keyword drives, the
// in-flight function registry FUNCTION/FUNCTION_RESULT_BEGIN correlate
// against, and the small amount of per-session state (current host,
// current chart, whether a batch produced a sample) the wire protocol
// itself doesn't carry explicitly on every line.
type DispatchContext struct {
	Sink      sink.Sink
	Functions *functions.Registry

	// DeferredCap overrides DeferredBufferCap for function result captures;
	// zero selects the default.
	DeferredCap int

	currentHost    string
	currentChart   string
	batchActive    bool
	producedSample bool
}

// ProducedSample reports whether CommitBatch has been called at least once
// since the context was created or last reset. The Plugin Loop uses this to
// decide whether a run counts toward successful_collections or
// serial_failures.
func (c *DispatchContext) ProducedSample() bool {
	return c.producedSample
}

// ResetProducedSample clears the per-run sample flag. The Loop builds a
// fresh DispatchContext for every run and does not call it.
func (c *DispatchContext) ResetProducedSample() {
	c.producedSample = false
}

// RegisterStandardKeywords wires the fixed set of protocol keywords into
// table, dispatching into ctx.Sink and ctx.Functions. s.Handle must be
// set to ctx before any line is processed.
func RegisterStandardKeywords(table *KeywordTable, ctx *DispatchContext) error {
	registrations := []struct {
		name string
		cb   Callback
	}{
		{"CHART", chartCallback},
		{"DIMENSION", dimensionCallback},
		{"BEGIN", beginCallback},
		{"SET", setCallback},
		{"END", endCallback},
		{"FLUSH", flushCallback},
		{"DISABLE", disableCallback},
		{"VARIABLE", variableCallback},
		{"LABEL", labelCallback},
		{"OVERWRITE", overwriteCallback},
		{"CLABEL", clabelCallback},
		{"CLABEL_COMMIT", clabelCommitCallback},
		{"HOST", hostCallback},
		{"FUNCTION", functionCallback},
		{"FUNCTION_RESULT_BEGIN", functionResultBeginCallback},
	}

	for _, reg := range registrations {
		if err := table.Register(reg.name, reg.cb); err != nil {
			return err
		}
	}
	return nil
}

func dispatchCtx(s *Session) (*DispatchContext, bool) {
	ctx, ok := s.Handle.(*DispatchContext)
	return ctx, ok
}

func needFields(keyword string, lineNo uint64, fields []string, want int) error {
	if len(fields) < want {
		return protoerr.NewTooFewFieldsError(keyword, lineNo, want-1, len(fields)-1)
	}
	return nil
}

func parseInt(keyword string, lineNo uint64, field string) (int64, error) {
	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, protoerr.NewMalformedNumberError(keyword, lineNo, field)
	}
	return v, nil
}

func parseFloat(keyword string, lineNo uint64, field string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, protoerr.NewMalformedNumberError(keyword, lineNo, field)
	}
	return v, nil
}

// CHART type.id name title units family context charttype priority update_every options plugin module
func chartCallback(s *Session, f []string) (Result, error) {
	if err := needFields("CHART", s.LineNo(), f, 10); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("CHART", s.LineNo(), "no dispatch context")
	}

	priority, err := parseInt("CHART", s.LineNo(), f[8])
	if err != nil {
		return ResultError, err
	}
	updateEvery, err := parseInt("CHART", s.LineNo(), f[9])
	if err != nil {
		return ResultError, err
	}

	options := ""
	if len(f) > 10 {
		options = f[10]
	}

	if err := ctx.Sink.CreateChart(ctx.currentHost, f[1], f[2], f[3], f[4], f[5], f[6], f[7], int(priority), int(updateEvery), options); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("CHART", s.LineNo(), err.Error())
	}
	ctx.currentChart = f[1]
	return ResultOK, nil
}

// DIMENSION id name algorithm multiplier divisor options
func dimensionCallback(s *Session, f []string) (Result, error) {
	if err := needFields("DIMENSION", s.LineNo(), f, 6); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok || ctx.currentChart == "" {
		return ResultError, protoerr.NewSemanticRejectError("DIMENSION", s.LineNo(), "no current chart")
	}

	multiplier, err := parseInt("DIMENSION", s.LineNo(), f[4])
	if err != nil {
		return ResultError, err
	}
	divisor, err := parseInt("DIMENSION", s.LineNo(), f[5])
	if err != nil {
		return ResultError, err
	}

	options := ""
	if len(f) > 6 {
		options = f[6]
	}

	if err := ctx.Sink.CreateDimension(ctx.currentChart, f[1], f[2], f[3], multiplier, divisor, options); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("DIMENSION", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

// BEGIN chart_id microseconds
func beginCallback(s *Session, f []string) (Result, error) {
	if err := needFields("BEGIN", s.LineNo(), f, 2); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("BEGIN", s.LineNo(), "no dispatch context")
	}

	var micros int64
	var err error
	if len(f) > 2 {
		micros, err = parseInt("BEGIN", s.LineNo(), f[2])
		if err != nil {
			return ResultError, err
		}
	}

	if err := ctx.Sink.BeginBatch(f[1], micros); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("BEGIN", s.LineNo(), err.Error())
	}
	ctx.batchActive = true
	return ResultOK, nil
}

// SET dimension_id = value
func setCallback(s *Session, f []string) (Result, error) {
	if err := needFields("SET", s.LineNo(), f, 2); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok || !ctx.batchActive {
		return ResultError, protoerr.NewSemanticRejectError("SET", s.LineNo(), "SET before BEGIN")
	}

	valueField := f[len(f)-1]
	value, err := parseInt("SET", s.LineNo(), valueField)
	if err != nil {
		return ResultError, err
	}

	if err := ctx.Sink.SetDimension(f[1], value); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("SET", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

func endCallback(s *Session, f []string) (Result, error) {
	ctx, ok := dispatchCtx(s)
	if !ok || !ctx.batchActive {
		return ResultError, protoerr.NewSemanticRejectError("END", s.LineNo(), "END without BEGIN")
	}
	if err := ctx.Sink.CommitBatch(); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("END", s.LineNo(), err.Error())
	}
	ctx.batchActive = false
	ctx.producedSample = true
	return ResultOK, nil
}

func flushCallback(s *Session, f []string) (Result, error) {
	ctx, ok := dispatchCtx(s)
	if !ok || !ctx.batchActive {
		return ResultError, protoerr.NewSemanticRejectError("FLUSH", s.LineNo(), "FLUSH without BEGIN")
	}
	if err := ctx.Sink.DiscardBatch(); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("FLUSH", s.LineNo(), err.Error())
	}
	ctx.batchActive = false
	return ResultOK, nil
}

func disableCallback(s *Session, f []string) (Result, error) {
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("DISABLE", s.LineNo(), "no dispatch context")
	}
	if err := ctx.Sink.Disable(); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("DISABLE", s.LineNo(), err.Error())
	}
	s.RequestStop()
	return ResultStop, nil
}

// VARIABLE [HOST|CHART] name = value
func variableCallback(s *Session, f []string) (Result, error) {
	if err := needFields("VARIABLE", s.LineNo(), f, 4); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("VARIABLE", s.LineNo(), "no dispatch context")
	}

	scope := sink.ScopeHost
	if f[1] == "CHART" {
		scope = sink.ScopeChart
	}

	value, err := parseFloat("VARIABLE", s.LineNo(), f[len(f)-1])
	if err != nil {
		return ResultError, err
	}

	if err := ctx.Sink.SetVariable(scope, f[2], value); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("VARIABLE", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

// LABEL key value source
func labelCallback(s *Session, f []string) (Result, error) {
	if err := needFields("LABEL", s.LineNo(), f, 4); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("LABEL", s.LineNo(), "no dispatch context")
	}
	if err := ctx.Sink.StageLabel(f[1], f[2], f[3]); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("LABEL", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

func overwriteCallback(s *Session, f []string) (Result, error) {
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("OVERWRITE", s.LineNo(), "no dispatch context")
	}
	if err := ctx.Sink.CommitLabels(true); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("OVERWRITE", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

// CLABEL key value source
func clabelCallback(s *Session, f []string) (Result, error) {
	if err := needFields("CLABEL", s.LineNo(), f, 4); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("CLABEL", s.LineNo(), "no dispatch context")
	}
	if err := ctx.Sink.StageChartLabel(f[1], f[2], f[3]); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("CLABEL", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

func clabelCommitCallback(s *Session, f []string) (Result, error) {
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("CLABEL_COMMIT", s.LineNo(), "no dispatch context")
	}
	if err := ctx.Sink.CommitChartLabels(); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("CLABEL_COMMIT", s.LineNo(), err.Error())
	}
	return ResultOK, nil
}

// HOST machine_guid hostname registry_hostname update_every os timezone tags
func hostCallback(s *Session, f []string) (Result, error) {
	if err := needFields("HOST", s.LineNo(), f, 7); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("HOST", s.LineNo(), "no dispatch context")
	}

	updateEvery, err := parseInt("HOST", s.LineNo(), f[4])
	if err != nil {
		return ResultError, err
	}

	tags := ""
	if len(f) > 7 {
		tags = f[7]
	}

	if err := ctx.Sink.SwitchHost(f[1], f[2], f[3], int(updateEvery), f[5], f[6], tags); err != nil {
		return ResultError, protoerr.NewSemanticRejectError("HOST", s.LineNo(), err.Error())
	}
	ctx.currentHost = f[1]
	return ResultOK, nil
}

// FUNCTION transaction_id timeout function_name [args...]
func functionCallback(s *Session, f []string) (Result, error) {
	if err := needFields("FUNCTION", s.LineNo(), f, 4); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("FUNCTION", s.LineNo(), "no dispatch context")
	}

	timeoutSec, err := parseInt("FUNCTION", s.LineNo(), f[2])
	if err != nil {
		return ResultError, err
	}

	_, openErr := ctx.Functions.Open(f[1], time.Duration(timeoutSec)*time.Second)
	if openErr != nil {
		return ResultError, protoerr.NewSemanticRejectError("FUNCTION", s.LineNo(), openErr.Error())
	}
	return ResultOK, nil
}

// FUNCTION_RESULT_BEGIN "<tx>" <code> "<content-type>" <expires_unix>
// Installs deferred capture until FUNCTION_RESULT_END; the accumulated
// payload is handed to the in-flight registry's Deliver on completion.
func functionResultBeginCallback(s *Session, f []string) (Result, error) {
	if err := needFields("FUNCTION_RESULT_BEGIN", s.LineNo(), f, 5); err != nil {
		return ResultError, err
	}
	ctx, ok := dispatchCtx(s)
	if !ok {
		return ResultError, protoerr.NewSemanticRejectError("FUNCTION_RESULT_BEGIN", s.LineNo(), "no dispatch context")
	}

	txn := f[1]
	code, err := parseInt("FUNCTION_RESULT_BEGIN", s.LineNo(), f[2])
	if err != nil {
		return ResultError, err
	}
	contentType := f[3]
	expiresUnix, err := parseInt("FUNCTION_RESULT_BEGIN", s.LineNo(), f[4])
	if err != nil {
		return ResultError, err
	}

	installErr := s.InstallDeferred("FUNCTION_RESULT_END", ctx.DeferredCap, func(sess *Session, payload []byte, overflowed bool) error {
		if overflowed {
			ctx.Functions.Cancel(txn)
			return nil
		}
		ctx.Functions.Deliver(txn, int(code), contentType, time.Unix(expiresUnix, 0), payload)
		return nil
	})
	if installErr != nil {
		return ResultError, installErr
	}
	return ResultOK, nil
}
