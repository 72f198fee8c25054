// Package forge is the agent-facing surface of the tool factory: create,
// test, list, inspect and delete Tool Units, and ask for implementation ideas.
//
// Every operation is available both as a Go method and as a toolforge.Tool in
// the Forge's Registry, so an LLM agent and the CLI go through the same code.
package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skosovsky/toolforge"
	"github.com/skosovsky/toolforge/generator"
	"github.com/skosovsky/toolforge/knowledge"
	"github.com/skosovsky/toolforge/store"
)

// Knowledge answers implementation questions. *knowledge.Client implements it.
type Knowledge interface {
	ImplementationIdeas(ctx context.Context, description string) (string, error)
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// Deps are the collaborators a Forge works with. Generator, Store and Harness
// are required; Knowledge may be nil, in which case the knowledge tools report
// the missing API key.
type Deps struct {
	Generator *generator.Generator
	Store     store.Store
	Harness   *toolforge.Harness
	Knowledge Knowledge
	Logger    *slog.Logger
	// Middlewares wrap the agent tools inside recovery and logging.
	Middlewares []toolforge.Middleware
	// Now stamps new records. Defaults to time.Now.
	Now func() time.Time
}

// Forge owns the agent tools and the registry they are served from.
type Forge struct {
	deps     Deps
	registry *toolforge.Registry
}

// New validates deps, builds the agent tools and registers them. Recovery and
// logging are always the outermost middlewares, followed by deps.Middlewares.
// Registry().Use replaces the whole chain, so extra middlewares belong in Deps.
func New(deps Deps, opts ...toolforge.RegistryOption) (*Forge, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("forge: generator is required")
	case deps.Store == nil:
		return nil, errors.New("forge: store is required")
	case deps.Harness == nil:
		return nil, errors.New("forge: harness is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	f := &Forge{deps: deps, registry: toolforge.NewRegistry(opts...)}
	tools, err := f.buildTools()
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		f.registry.Register(t)
	}
	chain := append([]toolforge.Middleware{toolforge.WithRecovery(), toolforge.WithLogging(deps.Logger)}, deps.Middlewares...)
	f.registry.Use(chain...)
	return f, nil
}

// Registry returns the registry serving the agent tools.
func (f *Forge) Registry() *toolforge.Registry { return f.registry }

// Create generates a Tool Unit from spec and records it. If the record cannot
// be stored the generated file is removed again.
func (f *Forge) Create(ctx context.Context, spec generator.Spec) (store.Record, error) {
	name, err := spec.Validate(f.deps.Generator.Modules())
	if err != nil {
		return store.Record{}, err
	}
	if _, err := f.deps.Store.Get(ctx, name); err == nil {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrExists, name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Record{}, fmt.Errorf("look up %s: %w", name, err)
	}

	var params map[string]any
	if !spec.Raw {
		if params, err = generator.ParametersSchema(spec.Inputs); err != nil {
			return store.Record{}, err
		}
	}
	path, name, err := f.deps.Generator.Generate(spec)
	if err != nil {
		return store.Record{}, err
	}
	rec := store.Record{
		Spec:       spec,
		FilePath:   path,
		Parameters: params,
		CreatedAt:  f.deps.Now().UTC(),
	}
	rec.Name = name
	if err := f.deps.Store.Add(ctx, rec); err != nil {
		if rmErr := f.deps.Generator.Remove(path); rmErr != nil {
			f.deps.Logger.ErrorContext(ctx, "rollback of generated tool failed", "path", path, "error", rmErr)
		}
		return store.Record{}, fmt.Errorf("record tool %s: %w", name, err)
	}
	f.deps.Logger.InfoContext(ctx, "tool created", "tool", name, "path", path)
	return rec, nil
}

// Test runs req through the harness.
func (f *Forge) Test(ctx context.Context, req toolforge.TestRequest) toolforge.TestReport {
	return f.deps.Harness.Run(ctx, req)
}

// TestJSON runs a loosely-typed JSON request, as an agent or a request file
// would send it.
func (f *Forge) TestJSON(ctx context.Context, data []byte) toolforge.TestReport {
	return f.deps.Harness.RunJSON(ctx, data)
}

// TestByName tests the stored tool called name.
func (f *Forge) TestByName(ctx context.Context, name string, cases []string) (toolforge.TestReport, error) {
	rec, err := f.Get(ctx, name)
	if err != nil {
		return toolforge.TestReport{}, err
	}
	return f.Test(ctx, toolforge.TestRequest{ToolFilePath: rec.FilePath, InputCases: cases}), nil
}

// List returns every stored tool sorted by name. It never returns nil on success.
func (f *Forge) List(ctx context.Context) ([]store.Record, error) {
	recs, err := f.deps.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return recs, nil
}

// Get returns the stored tool. name is normalized first, so "Weather Lookup"
// finds weather_lookup.
func (f *Forge) Get(ctx context.Context, name string) (store.Record, error) {
	key, err := toolforge.NormalizeName(name)
	if err != nil {
		return store.Record{}, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	return f.deps.Store.Get(ctx, key)
}

// Delete removes the record and then, best effort, its file. A file that
// cannot be removed is logged and does not fail the call.
func (f *Forge) Delete(ctx context.Context, name string) (store.Record, error) {
	key, err := toolforge.NormalizeName(name)
	if err != nil {
		return store.Record{}, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	rec, err := f.deps.Store.Delete(ctx, key)
	if err != nil {
		return store.Record{}, err
	}
	if err := f.deps.Generator.Remove(rec.FilePath); err != nil {
		f.deps.Logger.WarnContext(ctx, "tool file not removed", "tool", key, "path", rec.FilePath, "error", err)
	}
	f.deps.Logger.InfoContext(ctx, "tool deleted", "tool", key)
	return rec, nil
}

// Ideas asks the knowledge service how to implement a tool.
func (f *Forge) Ideas(ctx context.Context, description string) (string, error) {
	if f.deps.Knowledge == nil {
		return "", knowledge.ErrMissingAPIKey
	}
	return f.deps.Knowledge.ImplementationIdeas(ctx, description)
}

// Search runs a free-form knowledge query and returns the raw response.
func (f *Forge) Search(ctx context.Context, query string) (json.RawMessage, error) {
	if f.deps.Knowledge == nil {
		return nil, knowledge.ErrMissingAPIKey
	}
	return f.deps.Knowledge.Search(ctx, query)
}
