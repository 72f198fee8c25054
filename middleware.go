package toolforge

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Tool with cross-cutting behavior (logging, recovery, tracing).
type Middleware func(Tool) Tool

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Tool) Tool {
		return &loggingTool{ToolBase: ToolBase{Next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics and returns SystemError.
func WithRecovery() Middleware {
	return func(next Tool) Tool {
		return &recoveryTool{ToolBase{Next: next}}
	}
}

// ToolBase delegates Tool and ToolMetadata to Next. Embed it in middleware
// wrappers (including ones outside this package) and override Execute.
type ToolBase struct{ Next Tool }

func (b *ToolBase) Name() string               { return b.Next.Name() }
func (b *ToolBase) Description() string        { return b.Next.Description() }
func (b *ToolBase) Parameters() map[string]any { return b.Next.Parameters() }

func (b *ToolBase) Execute(ctx context.Context, args []byte) ([]byte, error) {
	return b.Next.Execute(ctx, args)
}

func (b *ToolBase) Timeout() time.Duration {
	if tm, ok := b.Next.(ToolMetadata); ok {
		return tm.Timeout()
	}
	return 0
}

func (b *ToolBase) Tags() []string {
	if tm, ok := b.Next.(ToolMetadata); ok {
		return tm.Tags()
	}
	return nil
}

func (b *ToolBase) IsDangerous() bool {
	if tm, ok := b.Next.(ToolMetadata); ok {
		return tm.IsDangerous()
	}
	return false
}

type loggingTool struct {
	ToolBase
	logger *slog.Logger
}

func (m *loggingTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	name := m.Next.Name()
	m.logger.InfoContext(ctx, "tool start", "tool", name)
	start := time.Now()
	res, err := m.Next.Execute(ctx, args)
	dur := time.Since(start)
	if err != nil {
		m.logger.ErrorContext(ctx, "tool error", "tool", name, "duration", dur, "error", err)
		return nil, err
	}
	m.logger.InfoContext(ctx, "tool end", "tool", name, "duration", dur, "bytes", len(res))
	return res, nil
}

type recoveryTool struct{ ToolBase }

func (r *recoveryTool) Execute(ctx context.Context, args []byte) (res []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &SystemError{Err: &panicError{p: p}}
		}
	}()
	return r.Next.Execute(ctx, args)
}

var (
	_ Tool         = (*ToolBase)(nil)
	_ ToolMetadata = (*ToolBase)(nil)
)
