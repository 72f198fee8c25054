// Package forgeotel adds OpenTelemetry tracing to toolforge tools.
package forgeotel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/toolforge"
)

// TracerName is the instrumentation scope used when no tracer is given.
const TracerName = "github.com/skosovsky/toolforge"

// WithTracing returns a middleware that wraps every Execute in a
// "tool.execute" span. A nil tracer uses the global provider.
func WithTracing(tracer trace.Tracer) toolforge.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return func(next toolforge.Tool) toolforge.Tool {
		return &tracingTool{ToolBase: toolforge.ToolBase{Next: next}, tracer: tracer}
	}
}

type tracingTool struct {
	toolforge.ToolBase
	tracer trace.Tracer
}

func (t *tracingTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "tool.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", t.Name()),
			attribute.Bool("tool.dangerous", t.IsDangerous()),
			attribute.Int("tool.args_size", len(args)),
		),
	)
	defer span.End()

	out, err := t.Next.Execute(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("tool.error_type", errorType(err)))
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetAttributes(attribute.Int("tool.result_size", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func errorType(err error) string {
	if toolforge.IsClientError(err) {
		return "client"
	}
	return "system"
}
