package toolforge

import (
	"errors"
	"fmt"
)

// Sentinel errors for agent tool execution. Use errors.Is to check.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrTimeout      = errors.New("tool execution timeout")
	ErrValidation   = errors.New("validation failed")
	ErrShutdown     = errors.New("registry is shutting down")
)

// Sentinel errors for the load-and-test harness, one per ErrorKind.
// Loaders wrap ErrUnitNotFound, ErrUnitLoad and ErrEntryPointMismatch so the
// harness can classify load failures.
var (
	ErrMissingLocation    = errors.New("missing tool file path")
	ErrInvalidInputShape  = errors.New("invalid input shape")
	ErrUnitNotFound       = errors.New("tool unit not found")
	ErrUnitLoad           = errors.New("tool unit load failed")
	ErrEntryPointMismatch = errors.New("entry point mismatch")
	ErrCaseParse          = errors.New("input case parse failed")
	ErrCaseExecution      = errors.New("input case execution failed")
	ErrCaseSerialization  = errors.New("output serialization failed")
)

// ErrorKind classifies a harness failure.
type ErrorKind string

const (
	KindMissingLocation    ErrorKind = "MissingLocation"
	KindInvalidInputShape  ErrorKind = "InvalidInputShape"
	KindUnitNotFound       ErrorKind = "UnitNotFound"
	KindUnitLoad           ErrorKind = "UnitLoadError"
	KindEntryPointMismatch ErrorKind = "EntryPointMismatch"
	KindCaseParse          ErrorKind = "CaseParseError"
	KindCaseExecution      ErrorKind = "CaseExecutionError"
	KindCaseSerialization  ErrorKind = "CaseSerializationError"
)

var kindSentinels = map[ErrorKind]error{
	KindMissingLocation:    ErrMissingLocation,
	KindInvalidInputShape:  ErrInvalidInputShape,
	KindUnitNotFound:       ErrUnitNotFound,
	KindUnitLoad:           ErrUnitLoad,
	KindEntryPointMismatch: ErrEntryPointMismatch,
	KindCaseParse:          ErrCaseParse,
	KindCaseExecution:      ErrCaseExecution,
	KindCaseSerialization:  ErrCaseSerialization,
}

// PerCase reports whether the kind is scoped to a single input case.
// Whole-call kinds short-circuit the run.
func (k ErrorKind) PerCase() bool {
	switch k {
	case KindCaseParse, KindCaseExecution, KindCaseSerialization:
		return true
	}
	return false
}

// HarnessError is a single failure recorded in a TestReport.
// Case is the zero-based input index, or -1 for whole-call failures.
type HarnessError struct {
	Kind  ErrorKind
	Case  int
	Path  string
	Input string
	Entry string
	Err   error
}

func (e *HarnessError) Error() string {
	var detail string
	if e.Err != nil {
		detail = e.Err.Error()
	}
	switch e.Kind {
	case KindMissingLocation:
		return "error processing input data: 'tool_file_path' is missing or empty"
	case KindInvalidInputShape:
		return "error processing input data: " + detail
	case KindUnitNotFound:
		return fmt.Sprintf("error loading tool: could not find or load %s: %s", e.Path, detail)
	case KindUnitLoad:
		return fmt.Sprintf("error importing tool %s: %s", e.Path, detail)
	case KindEntryPointMismatch:
		return fmt.Sprintf("error: tool function name %q does not match the file name of %s: %s", e.Entry, e.Path, detail)
	case KindCaseParse:
		return fmt.Sprintf("case %d: error parsing input JSON '%s': %s", e.Case+1, e.Input, detail)
	case KindCaseExecution:
		return fmt.Sprintf("case %d: error executing tool with input '%s': %s", e.Case+1, e.Input, detail)
	case KindCaseSerialization:
		return fmt.Sprintf("case %d: error serializing output for input '%s': output is not JSON serializable: %s", e.Case+1, e.Input, detail)
	}
	return string(e.Kind) + ": " + detail
}

func (e *HarnessError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind, so errors.Is(err, ErrCaseParse) works
// regardless of the wrapped cause.
func (e *HarnessError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// ClientError is an error that should be sent back to the LLM for self-correction
// (e.g. invalid JSON, schema validation failure, duplicate tool name).
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (disk full, panic, etc.).
// The LLM should not see the underlying error message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// panicError wraps a recovered panic value.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
