package starlarksandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.uber.org/goleak"

	"github.com/skosovsky/toolforge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeUnit(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const calculatorSrc = `
load("math", "math")

def calculator(args):
    op = args["operation"]
    a = args["a"]
    b = args.get("b", 0)
    if op == "add":
        return a + b
    elif op == "divide":
        if b == 0:
            fail("division by zero")
        return a / b
    elif op == "sqrt":
        return math.sqrt(a)
    return {"error": "unknown operation " + op}
`

func TestLoader_Load_ResolvesEntryPoint(t *testing.T) {
	path := writeUnit(t, "calculator.star", calculatorSrc)
	entry, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
	require.NoError(t, err)

	out, err := entry.Invoke(context.Background(), map[string]any{"operation": "add", "a": int64(2), "b": int64(3)})
	require.NoError(t, err)
	b, err := out.(Value).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `5`, string(b))
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		src      string
		sentinel error
		contains string
	}{
		{"syntax error", "broken.star", "def broken(args)\n    return 1\n", toolforge.ErrUnitLoad, "broken.star"},
		{"top-level failure", "boom.star", "fail('exploded at import')\ndef boom(args):\n    return 1\n", toolforge.ErrUnitLoad, "exploded at import"},
		{"undeclared module", "net.star", "load(\"http\", \"get\")\ndef net(args):\n    return 1\n", toolforge.ErrUnitLoad, "not declared"},
		{"entry point renamed", "calculator.star", "def calc(args):\n    return 1\n", toolforge.ErrEntryPointMismatch, `"calculator"`},
		{"entry point not callable", "value.star", "value = 42\n", toolforge.ErrEntryPointMismatch, "not a function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeUnit(t, tt.file, tt.src)
			_, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghost.star")
	_, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
	require.Error(t, err)
	assert.ErrorIs(t, err, toolforge.ErrUnitNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_Load_Directory(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), toolforge.UnitAt(t.TempDir()))
	assert.ErrorIs(t, err, toolforge.ErrUnitNotFound)
}

func TestLoader_Load_PicksUpEdits(t *testing.T) {
	path := writeUnit(t, "version.star", "def version(args):\n    return 1\n")
	l := NewLoader()
	call := func() string {
		entry, err := l.Load(context.Background(), toolforge.UnitAt(path))
		require.NoError(t, err)
		out, err := entry.Invoke(context.Background(), nil)
		require.NoError(t, err)
		b, err := out.(Value).MarshalJSON()
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "1", call())
	require.NoError(t, os.WriteFile(path, []byte("def version(args):\n    return 2\n"), 0o644))
	assert.Equal(t, "2", call())
}

func TestLoader_Invoke_GlobalsFrozen(t *testing.T) {
	src := "seen = []\ndef counter(args):\n    seen.append(args)\n    return len(seen)\n"
	path := writeUnit(t, "counter.star", src)
	entry, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
	require.NoError(t, err)
	_, err = entry.Invoke(context.Background(), int64(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestLoader_Invoke_StepLimit(t *testing.T) {
	src := "def spin(args):\n    while True:\n        pass\n"
	path := writeUnit(t, "spin.star", src)
	entry, err := NewLoader(WithMaxSteps(10_000)).Load(context.Background(), toolforge.UnitAt(path))
	require.NoError(t, err)
	_, err = entry.Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many steps")
}

func TestLoader_Invoke_ContextCancel(t *testing.T) {
	src := "def spin(args):\n    while True:\n        pass\n"
	path := writeUnit(t, "spin.star", src)
	entry, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = entry.Invoke(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestLoader_WithModule(t *testing.T) {
	path := writeUnit(t, "greet.star", "load(\"consts\", \"greeting\")\ndef greet(args):\n    return greeting + \", \" + args\n")
	_, err := NewLoader().Load(context.Background(), toolforge.UnitAt(path))
	require.ErrorIs(t, err, toolforge.ErrUnitLoad)

	l := NewLoader(WithModule("consts", starlark.StringDict{"greeting": starlark.String("hello")}))
	assert.Contains(t, l.Modules(), "consts")
	entry, err := l.Load(context.Background(), toolforge.UnitAt(path))
	require.NoError(t, err)
	out, err := entry.Invoke(context.Background(), "bob")
	require.NoError(t, err)
	b, err := out.(Value).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"hello, bob"`, string(b))
}

func TestLoader_Modules(t *testing.T) {
	assert.Equal(t, []string{"json", "math", "struct", "time"}, NewLoader().Modules())
}
