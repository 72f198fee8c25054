package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skosovsky/toolforge"
	"github.com/skosovsky/toolforge/metrics"
)

const (
	maxCallBody     = 1 << 20
	shutdownTimeout = 10 * time.Second
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent tools over HTTP",
		Long: `Serve the agent tools over HTTP.

  GET  /tools         tool definitions (name, description, JSON Schema)
  POST /tools/{name}  execute a tool; the body is its JSON arguments
  GET  /metrics       Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Server.ListenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default TOOLFORGE_LISTEN_ADDR)")
	return cmd
}

func (c *cli) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("serving agent tools", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := errors.Join(srv.Shutdown(shutdownCtx), c.forge.Registry().Shutdown(shutdownCtx))
	if srvErr := <-errCh; !errors.Is(srvErr, http.ErrServerClosed) {
		err = errors.Join(err, srvErr)
	}
	c.logger.Info("server stopped")
	return err
}

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Tags        []string       `json:"tags,omitempty"`
	Dangerous   bool           `json:"dangerous,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *cli) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", c.handleTools)
	mux.HandleFunc("POST /tools/{name}", c.handleCall)
	mux.Handle("GET /metrics", metrics.Handler(c.metrics))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (c *cli) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := c.forge.Registry().Tools()
	defs := make([]toolDefinition, 0, len(tools))
	for _, t := range tools {
		def := toolDefinition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
		if tm, ok := t.(toolforge.ToolMetadata); ok {
			def.Tags = tm.Tags()
			def.Dangerous = tm.IsDangerous()
		}
		defs = append(defs, def)
	}
	writeJSON(w, http.StatusOK, defs)
}

func (c *cli) handleCall(w http.ResponseWriter, r *http.Request) {
	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}
	if len(args) == 0 {
		args = []byte(`{}`)
	}
	callID := r.Header.Get("X-Call-ID")
	if callID == "" {
		callID = uuid.NewString()
	}
	res := c.forge.Registry().Execute(r.Context(), toolforge.ToolCall{
		ID:       callID,
		ToolName: r.PathValue("name"),
		Args:     args,
	})
	w.Header().Set("X-Call-ID", callID)
	switch {
	case res.Error == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Result)
	case errors.Is(res.Error, toolforge.ErrToolNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: res.Error.Error()})
	case toolforge.IsClientError(res.Error):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: res.Error.Error()})
	case errors.Is(res.Error, toolforge.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: res.Error.Error()})
	case errors.Is(res.Error, toolforge.ErrShutdown):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: res.Error.Error()})
	default:
		c.logger.ErrorContext(r.Context(), "tool call failed", "tool", r.PathValue("name"), "call_id", callID, "error", res.Error)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
