package toolforge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// TestRequest asks the harness to load the Tool Unit at ToolFilePath and run
// every input case through its entry point, in order. Each input case is one
// JSON document passed as the entry point's sole argument.
type TestRequest struct {
	ToolFilePath string   `json:"tool_file_path"`
	InputCases   []string `json:"input_cases"`
}

// CaseStatus is the outcome of a single input case.
type CaseStatus string

const (
	CaseOK                  CaseStatus = "ok"
	CaseParseFailed         CaseStatus = "parse_error"
	CaseExecutionFailed     CaseStatus = "execution_error"
	CaseSerializationFailed CaseStatus = "serialization_error"
)

// CaseReport records what happened to one input case, by position.
type CaseReport struct {
	Index  int        `json:"index"`
	Input  string     `json:"input"`
	Status CaseStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// TestReport is always returned by the harness; failures are data, never panics.
//
// Results holds the serialized output of every case that succeeded, in input
// order. ErrorMessages holds one message per failure at any stage. Cases ties
// each input position to its outcome; it is empty when the load phase failed.
type TestReport struct {
	Success       bool         `json:"success"`
	ToolFilePath  string       `json:"tool_file_path"`
	Results       []string     `json:"results"`
	ErrorMessages []string     `json:"error_messages"`
	Cases         []CaseReport `json:"cases,omitempty"`

	errs []*HarnessError
}

func newReport(path string) TestReport {
	return TestReport{
		ToolFilePath:  path,
		Results:       []string{},
		ErrorMessages: []string{},
	}
}

func (r *TestReport) record(err *HarnessError) {
	r.errs = append(r.errs, err)
	r.ErrorMessages = append(r.ErrorMessages, err.Error())
}

// Errors returns the typed failures behind ErrorMessages, in the same order.
func (r TestReport) Errors() []*HarnessError {
	return append([]*HarnessError(nil), r.errs...)
}

// Kinds returns the kind of every recorded failure, in order.
func (r TestReport) Kinds() []ErrorKind {
	out := make([]ErrorKind, len(r.errs))
	for i, e := range r.errs {
		out[i] = e.Kind
	}
	return out
}

// Err joins every recorded failure, or returns nil for a successful report.
func (r TestReport) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	errs := make([]error, len(r.errs))
	for i, e := range r.errs {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Harness loads Tool Units through a Loader and exercises them with input cases.
// Runs share no state: each call reloads the unit from disk. A Harness is safe
// for concurrent use if its Loader is.
type Harness struct {
	loader Loader
	opts   harnessOptions
}

// NewHarness returns a Harness backed by loader.
func NewHarness(loader Loader, opts ...HarnessOption) *Harness {
	o := harnessOptions{recoverPanics: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Harness{loader: loader, opts: o}
}

// Run executes req and returns its report. It never panics on behalf of the
// Tool Unit (unless panic recovery was disabled) and never returns an error:
// every failure is recorded in the report.
func (h *Harness) Run(ctx context.Context, req TestRequest) TestReport {
	start := time.Now()
	rep := h.run(ctx, req)
	h.finish(ctx, rep, start)
	return rep
}

// RunJSON decodes a loosely-typed request (as an agent would send it) and runs it.
// A body that is not an object, a non-string path, or input_cases that is not
// a list of strings yields an InvalidInputShape report.
func (h *Harness) RunJSON(ctx context.Context, data []byte) TestReport {
	start := time.Now()
	req, err := DecodeTestRequest(data)
	if err != nil {
		rep := newReport(req.ToolFilePath)
		rep.record(&HarnessError{Kind: KindInvalidInputShape, Case: -1, Path: req.ToolFilePath, Err: err})
		h.finish(ctx, rep, start)
		return rep
	}
	rep := h.run(ctx, req)
	h.finish(ctx, rep, start)
	return rep
}

// DecodeTestRequest parses a JSON test request. A missing or null input_cases
// decodes as an empty list. Errors wrap ErrInvalidInputShape; the returned
// request carries whatever path could be decoded.
func DecodeTestRequest(data []byte) (TestRequest, error) {
	var req TestRequest
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return req, fmt.Errorf("%w: request must be a JSON object", ErrInvalidInputShape)
	}
	if raw, ok := fields["tool_file_path"]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &req.ToolFilePath); err != nil {
			return req, fmt.Errorf("%w: 'tool_file_path' must be a string", ErrInvalidInputShape)
		}
	}
	if raw, ok := fields["input_cases"]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &req.InputCases); err != nil {
			return req, fmt.Errorf("%w: 'input_cases' must be a list of strings", ErrInvalidInputShape)
		}
	}
	return req, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func (h *Harness) run(ctx context.Context, req TestRequest) TestReport {
	rep := newReport(req.ToolFilePath)
	if req.ToolFilePath == "" {
		rep.record(&HarnessError{Kind: KindMissingLocation, Case: -1, Err: ErrMissingLocation})
		return rep
	}

	unit := UnitAt(req.ToolFilePath)
	log := h.opts.logger.With("tool_file_path", unit.Path, "entry_point", unit.EntryPoint)

	entry, err := h.load(ctx, unit)
	if err != nil {
		herr := classifyLoadError(unit, err)
		log.Warn("tool unit load failed", "kind", herr.Kind, "error", err)
		rep.record(herr)
		return rep
	}

	rep.Cases = make([]CaseReport, 0, len(req.InputCases))
	for i, input := range req.InputCases {
		cr, herr := h.runCase(ctx, entry, i, input)
		rep.Cases = append(rep.Cases, cr)
		if herr != nil {
			log.Debug("input case failed", "case", i, "kind", herr.Kind, "error", herr.Err)
			rep.record(herr)
			continue
		}
		rep.Results = append(rep.Results, cr.Output)
	}
	rep.Success = len(rep.errs) == 0
	return rep
}

func (h *Harness) finish(ctx context.Context, rep TestReport, start time.Time) {
	elapsed := time.Since(start)
	h.opts.logger.Info("tool unit test finished",
		"tool_file_path", rep.ToolFilePath,
		"success", rep.Success,
		"cases", len(rep.Cases),
		"results", len(rep.Results),
		"errors", len(rep.ErrorMessages),
		"duration", elapsed,
	)
	for _, obs := range h.opts.observers {
		obs.ObserveRun(ctx, rep, elapsed)
	}
}

func (h *Harness) load(ctx context.Context, unit Unit) (entry EntryPoint, err error) {
	if h.opts.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.loadTimeout)
		defer cancel()
	}
	if h.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				entry = nil
				err = fmt.Errorf("%w: %w", ErrUnitLoad, &panicError{p: p})
			}
		}()
	}
	entry, err = h.loader.Load(ctx, unit)
	if err == nil && entry == nil {
		err = fmt.Errorf("%w: loader returned no entry point", ErrEntryPointMismatch)
	}
	return entry, err
}

func classifyLoadError(unit Unit, err error) *HarnessError {
	herr := &HarnessError{Case: -1, Path: unit.Path, Entry: unit.EntryPoint, Err: err}
	switch {
	case errors.Is(err, ErrUnitNotFound):
		herr.Kind = KindUnitNotFound
	case errors.Is(err, ErrEntryPointMismatch):
		herr.Kind = KindEntryPointMismatch
	default:
		herr.Kind = KindUnitLoad
	}
	return herr
}

func (h *Harness) runCase(ctx context.Context, entry EntryPoint, i int, input string) (CaseReport, *HarnessError) {
	cr := CaseReport{Index: i, Input: input}
	fail := func(status CaseStatus, kind ErrorKind, err error) (CaseReport, *HarnessError) {
		herr := &HarnessError{Kind: kind, Case: i, Input: input, Err: err}
		cr.Status = status
		cr.Error = herr.Error()
		return cr, herr
	}

	arg, err := decodeCase(input)
	if err != nil {
		return fail(CaseParseFailed, KindCaseParse, err)
	}
	out, err := h.invoke(ctx, entry, arg)
	if err != nil {
		return fail(CaseExecutionFailed, KindCaseExecution, err)
	}
	encoded, err := encodeResult(out)
	if err != nil {
		return fail(CaseSerializationFailed, KindCaseSerialization, err)
	}
	cr.Status = CaseOK
	cr.Output = encoded
	return cr, nil
}

func (h *Harness) invoke(ctx context.Context, entry EntryPoint, arg any) (out any, err error) {
	if h.opts.caseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.caseTimeout)
		defer cancel()
	}
	if h.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				out = nil
				err = &panicError{p: p}
			}
		}()
	}
	return entry.Invoke(ctx, arg)
}

var errTrailingData = errors.New("unexpected data after top-level JSON value")

// decodeCase parses one input case. Numbers stay json.Number so integers are
// not widened to float64 before reaching the entry point.
func decodeCase(input string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

func encodeResult(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
