// Package testutil provides test helpers for toolforge (MockTool, MockLoader).
package testutil

import (
	"context"
	"sync"

	"github.com/skosovsky/toolforge"
)

// MockTool is a configurable Tool implementation for tests.
type MockTool struct {
	NameVal   string
	DescVal   string
	ParamsVal map[string]any
	ExecuteFn func(ctx context.Context, args []byte) ([]byte, error)
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the tool description.
func (m *MockTool) Description() string {
	return m.DescVal
}

// Parameters returns the parameters schema (or empty map).
func (m *MockTool) Parameters() map[string]any {
	if m.ParamsVal != nil {
		return m.ParamsVal
	}
	return map[string]any{}
}

// Execute runs ExecuteFn if set, otherwise returns an empty JSON object.
func (m *MockTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return []byte(`{}`), nil
}

// MockLoader resolves units from an in-memory table keyed by entry point name
// and records every unit it was asked to load.
type MockLoader struct {
	mu      sync.Mutex
	Entries map[string]toolforge.EntryPointFunc
	// Err, when set, is returned for every load.
	Err   error
	units []toolforge.Unit
}

// Load returns the entry point registered under unit.EntryPoint.
func (m *MockLoader) Load(_ context.Context, unit toolforge.Unit) (toolforge.EntryPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = append(m.units, unit)
	if m.Err != nil {
		return nil, m.Err
	}
	fn, ok := m.Entries[unit.EntryPoint]
	if !ok {
		return nil, toolforge.ErrUnitNotFound
	}
	return fn, nil
}

// Units returns the units loaded so far, in order.
func (m *MockLoader) Units() []toolforge.Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]toolforge.Unit(nil), m.units...)
}

// Ensure the mocks implement their interfaces.
var (
	_ toolforge.Tool   = (*MockTool)(nil)
	_ toolforge.Loader = (*MockLoader)(nil)
)
