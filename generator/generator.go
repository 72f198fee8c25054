// Package generator writes Tool Units to disk from a structured description.
//
// Generated files are named after the normalized tool name, and the entry
// point inside is given the same name, so the harness can resolve it from the
// path alone. Files are written once; an existing file is never overwritten.
package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	starlarksandbox "github.com/skosovsky/toolforge/adapters/sandbox/starlark"
)

// ErrFileExists is returned when the target file is already present.
var ErrFileExists = errors.New("tool file already exists")

// Generator renders Tool Units into a single directory.
type Generator struct {
	dir     string
	modules []string
	perm    fs.FileMode
}

// Option configures a Generator.
type Option func(*Generator)

// WithModules sets the module manifest imports are checked against. It should
// match the loader's (see starlarksandbox.Loader.Modules).
func WithModules(modules ...string) Option {
	return func(g *Generator) {
		g.modules = slices.Clone(modules)
	}
}

// WithFileMode sets the permission bits of generated files. Defaults to 0o644.
func WithFileMode(perm fs.FileMode) Option {
	return func(g *Generator) {
		g.perm = perm
	}
}

// New returns a Generator writing into dir. The directory is created on the
// first Generate.
func New(dir string, opts ...Option) *Generator {
	g := &Generator{
		dir:     dir,
		modules: starlarksandbox.NewLoader().Modules(),
		perm:    0o644,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the directory tools are written to.
func (g *Generator) Dir() string { return g.dir }

// Modules returns the module manifest.
func (g *Generator) Modules() []string { return slices.Clone(g.modules) }

// PathFor returns where a tool with the given normalized name lives.
func (g *Generator) PathFor(name string) string {
	return filepath.Join(g.dir, name+starlarksandbox.Extension)
}

// Generate validates s, renders it and writes the file. It returns the path of
// the new file and the normalized name used for it and its entry point.
func (g *Generator) Generate(s Spec) (path, name string, err error) {
	name, err = s.Validate(g.modules)
	if err != nil {
		return "", "", err
	}
	src, err := Render(name, s)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create tools directory: %w", err)
	}
	path = g.PathFor(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, g.perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return "", "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(src); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, name, nil
}

// Remove deletes a generated file. A missing file is not an error.
func (g *Generator) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
