package toolforge

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

// Unit identifies a Tool Unit on disk. Path is set once when the unit is
// generated; EntryPoint is the name of the callable the loader must resolve.
type Unit struct {
	Path       string
	EntryPoint string
}

// UnitAt returns the Unit for path. The entry point is the file base name with
// its extension stripped; no other transformation is applied, so it matches
// whatever normalization the generator used when naming the file.
func UnitAt(path string) Unit {
	base := filepath.Base(path)
	return Unit{
		Path:       path,
		EntryPoint: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// Loader loads a Tool Unit fresh from disk and resolves its entry point.
// Implementations must not cache: every call observes the current file contents.
//
// Returned errors should wrap ErrUnitNotFound when the path does not resolve to
// a loadable unit, ErrEntryPointMismatch when the entry point is absent or not
// callable, and ErrUnitLoad for failures while executing top-level code.
type Loader interface {
	Load(ctx context.Context, unit Unit) (EntryPoint, error)
}

// EntryPoint is a resolved Tool Unit callable. Invoke receives a value decoded
// from JSON (nil, bool, json.Number, string, []any, map[string]any) and returns
// a value the harness encodes with encoding/json.
type EntryPoint interface {
	Invoke(ctx context.Context, arg any) (any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, unit Unit) (EntryPoint, error)

func (f LoaderFunc) Load(ctx context.Context, unit Unit) (EntryPoint, error) { return f(ctx, unit) }

// EntryPointFunc adapts a function to EntryPoint.
type EntryPointFunc func(ctx context.Context, arg any) (any, error)

func (f EntryPointFunc) Invoke(ctx context.Context, arg any) (any, error) { return f(ctx, arg) }

var errEmptyName = errors.New("tool name is empty after normalization")

// NormalizeName turns a human tool name into the token used for both the file
// base name and the entry point: lowercase, whitespace runs become a single
// underscore, and anything outside [a-z0-9_] becomes an underscore.
func NormalizeName(name string) (string, error) {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte('_')
			}
			space = true
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		space = false
	}
	if b.Len() == 0 {
		return "", errEmptyName
	}
	return b.String(), nil
}
