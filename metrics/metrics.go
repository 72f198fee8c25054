// Package metrics exports Prometheus metrics for harness runs and agent tool calls.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skosovsky/toolforge"
)

const namespace = "toolforge"

// Collector records harness and registry activity. It implements
// toolforge.Observer; pass ObserveToolCall to toolforge.WithOnAfterExecute.
type Collector struct {
	runs         *prometheus.CounterVec
	cases        *prometheus.CounterVec
	errors       *prometheus.CounterVec
	runDuration  prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "harness_runs_total",
				Help:      "Total number of tool unit test runs",
			},
			[]string{"outcome"}, // success|failure
		),
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "harness_cases_total",
				Help:      "Input cases by outcome",
			},
			[]string{"status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "harness_errors_total",
				Help:      "Harness failures by kind",
			},
			[]string{"kind"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "harness_run_duration_seconds",
				Help:      "Duration of a full test run, load included",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Agent tool calls by tool and status",
			},
			[]string{"tool", "status"}, // status: success|client_error|system_error
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Agent tool call duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
			},
			[]string{"tool"},
		),
	}
	for _, col := range []prometheus.Collector{c.runs, c.cases, c.errors, c.runDuration, c.toolCalls, c.toolDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRun implements toolforge.Observer.
func (c *Collector) ObserveRun(_ context.Context, rep toolforge.TestReport, elapsed time.Duration) {
	outcome := "failure"
	if rep.Success {
		outcome = "success"
	}
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	for _, cr := range rep.Cases {
		c.cases.WithLabelValues(string(cr.Status)).Inc()
	}
	for _, kind := range rep.Kinds() {
		c.errors.WithLabelValues(string(kind)).Inc()
	}
}

// ObserveToolCall matches the hook signature of toolforge.WithOnAfterExecute.
func (c *Collector) ObserveToolCall(_ context.Context, call toolforge.ToolCall, res toolforge.ToolResult, d time.Duration) {
	status := "success"
	switch {
	case res.Error == nil:
	case toolforge.IsClientError(res.Error):
		status = "client_error"
	default:
		status = "system_error"
	}
	c.toolCalls.WithLabelValues(call.ToolName, status).Inc()
	c.toolDuration.WithLabelValues(call.ToolName).Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ toolforge.Observer = (*Collector)(nil)
