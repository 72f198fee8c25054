package forgeotel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogProcessor writes every ended span to a slog.Logger: failed spans at
// warn level, the rest at debug.
type LogProcessor struct {
	logger *slog.Logger
}

// NewLogProcessor returns a LogProcessor. A nil logger uses slog.Default().
func NewLogProcessor(logger *slog.Logger) *LogProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProcessor{logger: logger}
}

func (p *LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	level := slog.LevelDebug
	if s.Status().Code == codes.Error {
		level = slog.LevelWarn
	}
	args := []any{
		"span", s.Name(),
		"trace_id", s.SpanContext().TraceID().String(),
		"span_id", s.SpanContext().SpanID().String(),
		"duration", s.EndTime().Sub(s.StartTime()),
		"status", s.Status().Code.String(),
	}
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	p.logger.Log(context.Background(), level, "span ended", args...)
}

func (p *LogProcessor) Shutdown(context.Context) error   { return nil }
func (p *LogProcessor) ForceFlush(context.Context) error { return nil }

// NewTracerProvider returns a provider that samples sampleRate of the root
// spans (1 or more samples everything) and logs them through logger.
// Callers own the provider and must Shutdown it.
func NewTracerProvider(logger *slog.Logger, sampleRate float64) *sdktrace.TracerProvider {
	var sampler sdktrace.Sampler
	switch {
	case sampleRate >= 1:
		sampler = sdktrace.AlwaysSample()
	case sampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(sampleRate)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewLogProcessor(logger)),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "toolforge"))),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
}

var _ sdktrace.SpanProcessor = (*LogProcessor)(nil)
