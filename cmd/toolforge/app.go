package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/skosovsky/toolforge"
	starlarksandbox "github.com/skosovsky/toolforge/adapters/sandbox/starlark"
	"github.com/skosovsky/toolforge/ext/forgeotel"
	"github.com/skosovsky/toolforge/forge"
	"github.com/skosovsky/toolforge/generator"
	"github.com/skosovsky/toolforge/internal/config"
	"github.com/skosovsky/toolforge/knowledge"
	"github.com/skosovsky/toolforge/metrics"
	"github.com/skosovsky/toolforge/store"
)

// cli holds what every subcommand needs. It is populated by setup before a
// command runs and released by close afterwards.
type cli struct {
	stdout, stderr io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	forge   *forge.Forge
	metrics *prometheus.Registry
	tracer  *sdktrace.TracerProvider
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.logger = newLogger(c.stderr, cfg.Log)

	c.metrics = prometheus.NewRegistry()
	c.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(c.metrics)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	st, err := openStore(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	c.store = st

	loader := starlarksandbox.NewLoader(
		starlarksandbox.WithMaxSteps(cfg.Harness.MaxSteps),
		starlarksandbox.WithLogger(c.logger),
	)
	harness := toolforge.NewHarness(loader,
		toolforge.WithLogger(c.logger),
		toolforge.WithCaseTimeout(cfg.Harness.CaseTimeout),
		toolforge.WithLoadTimeout(cfg.Harness.LoadTimeout),
		toolforge.WithObserver(collector),
	)

	deps := forge.Deps{
		Generator: generator.New(cfg.Tools.Dir, generator.WithModules(loader.Modules()...)),
		Store:     st,
		Harness:   harness,
		Logger:    c.logger,
	}
	if cfg.Tracing.Enabled {
		c.tracer = forgeotel.NewTracerProvider(c.logger, cfg.Tracing.SampleRate)
		deps.Middlewares = append(deps.Middlewares, forgeotel.WithTracing(c.tracer.Tracer(forgeotel.TracerName)))
	}
	if cfg.Knowledge.APIKey != "" {
		kc, err := newKnowledge(cfg.Knowledge, c.logger)
		if err != nil {
			return err
		}
		deps.Knowledge = kc
	}
	f, err := forge.New(deps,
		toolforge.WithRecoverPanics(true),
		toolforge.WithOnAfterExecute(collector.ObserveToolCall),
	)
	if err != nil {
		return err
	}
	c.forge = f
	return nil
}

func (c *cli) close() error {
	var errs []error
	if c.tracer != nil {
		errs = append(errs, c.tracer.Shutdown(context.Background()))
		c.tracer = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	path := cfg.StorePath()
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
		}
		return st, nil
	default:
		return store.NewFileStore(path, store.WithFileLogger(logger)), nil
	}
}

func newKnowledge(cfg config.KnowledgeConfig, logger *slog.Logger) (*knowledge.Client, error) {
	opts := []knowledge.Option{knowledge.WithLogger(logger)}
	if cfg.RatePerSecond > 0 {
		opts = append(opts, knowledge.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)))
	}
	return knowledge.New(knowledge.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, opts...)
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
