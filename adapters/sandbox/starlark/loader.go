// Package starlarksandbox loads Tool Units written in Starlark.
//
// A Tool Unit is a .star file whose top level defines a function named like
// the file (calculator.star defines calculator). Each Load executes the file
// on a fresh, uniquely named thread, so edits on disk are always picked up and
// two loads of the same path never share state. Globals are frozen after the
// top level runs, and every invocation gets its own thread, so input cases
// cannot observe each other.
//
// Modules available to load() are declared up front (json, math, time and
// struct by default); a unit loading anything else fails at load time.
package starlarksandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/skosovsky/toolforge"
)

// Extension is the file extension of Starlark Tool Units.
const Extension = ".star"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// DefaultModules returns the module manifest every Loader starts with.
func DefaultModules() map[string]starlark.StringDict {
	return map[string]starlark.StringDict{
		"json":   {"json": starjson.Module},
		"math":   {"math": starmath.Module},
		"time":   {"time": startime.Module},
		"struct": {"struct": starlark.NewBuiltin("struct", starlarkstruct.Make)},
	}
}

// Loader is a toolforge.Loader for Starlark files. It is safe for concurrent use.
type Loader struct {
	maxSteps uint64
	logger   *slog.Logger
	modules  map[string]starlark.StringDict
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxSteps caps the computation steps of the load phase and of each
// invocation. Zero means unlimited.
func WithMaxSteps(n uint64) Option {
	return func(l *Loader) {
		l.maxSteps = n
	}
}

// WithLogger receives print() output from Tool Units at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithModule adds (or replaces) a module in the load() manifest.
func WithModule(name string, members starlark.StringDict) Option {
	return func(l *Loader) {
		l.modules[name] = members
	}
}

// NewLoader returns a Loader with the default module manifest.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{modules: DefaultModules()}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Modules lists the module names a Tool Unit may load, sorted.
func (l *Loader) Modules() []string {
	return slices.Sorted(maps.Keys(l.modules))
}

// Load reads unit.Path, executes its top level and resolves unit.EntryPoint.
func (l *Loader) Load(ctx context.Context, unit toolforge.Unit) (toolforge.EntryPoint, error) {
	src, err := os.ReadFile(unit.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", toolforge.ErrUnitNotFound, err)
	}

	id := unit.EntryPoint + "@" + uuid.NewString()
	thread := l.newThread(id)
	stop := cancelOnDone(ctx, thread)
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, unit.Path, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", toolforge.ErrUnitLoad, withBacktrace(err))
	}

	fn, ok := globals[unit.EntryPoint]
	if !ok {
		return nil, fmt.Errorf("%w: no top-level definition named %q (found: %s)",
			toolforge.ErrEntryPointMismatch, unit.EntryPoint, describeGlobals(globals))
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s, not a function",
			toolforge.ErrEntryPointMismatch, unit.EntryPoint, fn.Type())
	}
	l.logger.Debug("tool unit loaded", "unit", id, "path", unit.Path)
	return &entryPoint{loader: l, id: id, fn: callable}, nil
}

func (l *Loader) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			l.logger.Debug("tool unit print", "unit", t.Name, "msg", msg)
		},
		Load: l.load,
	}
	if l.maxSteps > 0 {
		thread.SetMaxExecutionSteps(l.maxSteps)
	}
	return thread
}

func (l *Loader) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	members, ok := l.modules[strings.TrimSuffix(module, Extension)]
	if !ok {
		return nil, fmt.Errorf("module %q is not declared (available: %s)", module, strings.Join(l.Modules(), ", "))
	}
	return members, nil
}

type entryPoint struct {
	loader *Loader
	id     string
	fn     starlark.Callable
}

// Invoke calls the entry point with arg converted to a Starlark value. The
// result is a Value, which encodes itself to JSON.
func (e *entryPoint) Invoke(ctx context.Context, arg any) (any, error) {
	v, err := FromGo(arg)
	if err != nil {
		return nil, fmt.Errorf("convert argument: %w", err)
	}
	thread := e.loader.newThread(e.id)
	stop := cancelOnDone(ctx, thread)
	defer stop()

	out, err := starlark.Call(thread, e.fn, starlark.Tuple{v}, nil)
	if err != nil {
		return nil, withBacktrace(err)
	}
	return Value{Value: out}, nil
}

// cancelOnDone cancels thread when ctx is done. The returned func must be called
// once execution finishes.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() bool {
	return context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
}

func describeGlobals(globals starlark.StringDict) string {
	var fns []string
	for _, name := range globals.Keys() {
		if _, ok := globals[name].(starlark.Callable); ok {
			fns = append(fns, name)
		}
	}
	if len(fns) == 0 {
		return "no functions"
	}
	return strings.Join(fns, ", ")
}

// tracedError reports a Starlark evaluation error with its backtrace.
type tracedError struct{ *starlark.EvalError }

func (e *tracedError) Error() string { return e.Backtrace() }
func (e *tracedError) Unwrap() error { return e.EvalError }

func withBacktrace(err error) error {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return &tracedError{EvalError: ee}
	}
	return err
}

var _ toolforge.Loader = (*Loader)(nil)
