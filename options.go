package toolforge

import (
	"context"
	"log/slog"
	"time"
)

// toolOptions hold optional tool settings (timeout, strict, tags, etc.).
type toolOptions struct {
	strict    bool
	timeout   time.Duration
	tags      []string
	dangerous bool
}

// ToolOption configures a tool (e.g. WithStrict, WithTimeout).
type ToolOption func(*toolOptions)

// WithStrict sets strict mode for schema: additionalProperties: false for all objects,
// and all properties become required.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-tool timeout that overrides the registry default.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags (metadata for discovery).
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// WithDangerous marks the tool as dangerous (it writes files or runs agent-authored code).
func WithDangerous() ToolOption {
	return func(o *toolOptions) {
		o.dangerous = true
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout       time.Duration
	recoverPanics bool
	onBefore      func(context.Context, ToolCall)
	onAfter       func(context.Context, ToolCall, ToolResult, time.Duration)
}

// WithDefaultTimeout sets the default execution timeout for tools. Zero disables it.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithRecoverPanics enables panic recovery in Execute (returns SystemError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution.
func WithOnAfterExecute(fn func(context.Context, ToolCall, ToolResult, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// Observer receives a finished TestReport. metrics.Collector implements it.
type Observer interface {
	ObserveRun(ctx context.Context, report TestReport, elapsed time.Duration)
}

// HarnessOption configures a Harness.
type HarnessOption func(*harnessOptions)

type harnessOptions struct {
	logger        *slog.Logger
	caseTimeout   time.Duration
	loadTimeout   time.Duration
	recoverPanics bool
	observers     []Observer
}

// WithLogger sets the harness logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(o *harnessOptions) {
		o.logger = logger
	}
}

// WithCaseTimeout bounds each entry point invocation. Zero (the default) means no bound.
func WithCaseTimeout(d time.Duration) HarnessOption {
	return func(o *harnessOptions) {
		o.caseTimeout = d
	}
}

// WithLoadTimeout bounds the load phase. Zero (the default) means no bound.
func WithLoadTimeout(d time.Duration) HarnessOption {
	return func(o *harnessOptions) {
		o.loadTimeout = d
	}
}

// WithHarnessRecoverPanics controls whether panics raised by a Loader or an
// EntryPoint are converted into report errors. Enabled by default.
func WithHarnessRecoverPanics(enable bool) HarnessOption {
	return func(o *harnessOptions) {
		o.recoverPanics = enable
	}
}

// WithObserver adds an Observer notified after every run.
func WithObserver(obs Observer) HarnessOption {
	return func(o *harnessOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}
