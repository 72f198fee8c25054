package testutil

import (
	"time"

	"github.com/skosovsky/toolforge"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// suitable for tests.
func NewTestRegistry(tools ...toolforge.Tool) *toolforge.Registry {
	reg := toolforge.NewRegistry(
		toolforge.WithDefaultTimeout(30*time.Second),
		toolforge.WithRecoverPanics(true),
	)
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}

// NewTestHarness returns a Harness over loader with a short case timeout and
// panic recovery, so a misbehaving fake cannot hang a test.
func NewTestHarness(loader toolforge.Loader) *toolforge.Harness {
	return toolforge.NewHarness(loader,
		toolforge.WithCaseTimeout(5*time.Second),
		toolforge.WithHarnessRecoverPanics(true),
	)
}
