package starlarksandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/toolforge"
)

func newHarness() *toolforge.Harness {
	return toolforge.NewHarness(NewLoader())
}

func TestHarness_AllCasesSucceed(t *testing.T) {
	path := writeUnit(t, "calculator.star", calculatorSrc)
	cases := []string{
		`{"operation": "add", "a": 1, "b": 2}`,
		`{"operation": "divide", "a": 9, "b": 2}`,
		`{"operation": "sqrt", "a": 16}`,
		`{"operation": "pow", "a": 1}`,
	}
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: cases})
	require.True(t, rep.Success, rep.ErrorMessages)
	assert.Equal(t, path, rep.ToolFilePath)
	assert.Equal(t, []string{`3`, `4.5`, `4`, `{"error":"unknown operation pow"}`}, rep.Results)
	assert.Empty(t, rep.ErrorMessages)
	require.Len(t, rep.Cases, len(cases))
	for i, c := range rep.Cases {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, toolforge.CaseOK, c.Status)
	}
}

func TestHarness_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.star")
	for _, cases := range [][]string{nil, {`1`}, {`{not valid json`, `2`}} {
		rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: cases})
		assert.False(t, rep.Success)
		assert.Empty(t, rep.Results)
		assert.Equal(t, []toolforge.ErrorKind{toolforge.KindUnitNotFound}, rep.Kinds())
		assert.Len(t, rep.ErrorMessages, 1)
		assert.Empty(t, rep.Cases)
	}
}

func TestHarness_EntryPointMismatch(t *testing.T) {
	path := writeUnit(t, "calculator.star", "def calc(args):\n    return args\n")
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: []string{`1`, `2`}})
	assert.False(t, rep.Success)
	assert.Equal(t, []toolforge.ErrorKind{toolforge.KindEntryPointMismatch}, rep.Kinds())
	require.Len(t, rep.ErrorMessages, 1)
	assert.Contains(t, rep.ErrorMessages[0], "calculator")
	assert.Empty(t, rep.Results)
	assert.Empty(t, rep.Cases)
}

func TestHarness_LoadError(t *testing.T) {
	path := writeUnit(t, "broken.star", "def broken(args):\n    return undefined_name\n")
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: []string{`1`}})
	assert.False(t, rep.Success)
	assert.Equal(t, []toolforge.ErrorKind{toolforge.KindUnitLoad}, rep.Kinds())
	assert.Contains(t, rep.ErrorMessages[0], "undefined_name")
}

func TestHarness_OddEven(t *testing.T) {
	src := "def f(x):\n    if x % 2 == 1:\n        fail(\"odd input %d\" % x)\n    return x * 10\n"
	path := writeUnit(t, "f.star", src)
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: []string{"1", "2", "3", "4"}})
	assert.False(t, rep.Success)
	assert.Equal(t, []string{"20", "40"}, rep.Results)
	require.Len(t, rep.ErrorMessages, 2)
	assert.Contains(t, rep.ErrorMessages[0], "odd input 1")
	assert.Contains(t, rep.ErrorMessages[1], "odd input 3")
	assert.Equal(t, []toolforge.ErrorKind{toolforge.KindCaseExecution, toolforge.KindCaseExecution}, rep.Kinds())
	statuses := make([]toolforge.CaseStatus, len(rep.Cases))
	for i, c := range rep.Cases {
		statuses[i] = c.Status
	}
	assert.Equal(t, []toolforge.CaseStatus{
		toolforge.CaseExecutionFailed, toolforge.CaseOK, toolforge.CaseExecutionFailed, toolforge.CaseOK,
	}, statuses)
}

func TestHarness_InvalidJSONCase(t *testing.T) {
	path := writeUnit(t, "echo.star", "def echo(x):\n    return x\n")
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{
		ToolFilePath: path,
		InputCases:   []string{`{not valid json`, `{"ok": true}`},
	})
	assert.False(t, rep.Success)
	assert.Equal(t, []string{`{"ok":true}`}, rep.Results)
	assert.Equal(t, []toolforge.ErrorKind{toolforge.KindCaseParse}, rep.Kinds())
	assert.Contains(t, rep.ErrorMessages[0], "{not valid json")
}

func TestHarness_SerializationError(t *testing.T) {
	src := `
def shapes(kind):
    if kind == "fn":
        return shapes
    if kind == "set":
        return set([1])
    if kind == "intkey":
        return {1: "a", 2.5: "b", True: "c", None: "d"}
    if kind == "tuplekey":
        return {(1, 2): "a"}
    if kind == "nan":
        return float("nan")
    if kind == "struct":
        return struct(a = 1, b = [1, 2])
    return (kind, None, True)
`
	path := writeUnit(t, "shapes.star", "load(\"struct\", \"struct\")\n"+src)
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{
		ToolFilePath: path,
		InputCases:   []string{`"fn"`, `"set"`, `"intkey"`, `"tuplekey"`, `"nan"`, `"struct"`, `"tuple"`},
	})
	assert.False(t, rep.Success)
	assert.Equal(t, []string{
		`{"1":"a","2.5":"b","null":"d","true":"c"}`,
		`{"a":1,"b":[1,2]}`,
		`["tuple",null,true]`,
	}, rep.Results)
	assert.Equal(t, []toolforge.ErrorKind{
		toolforge.KindCaseSerialization,
		toolforge.KindCaseSerialization,
		toolforge.KindCaseSerialization,
		toolforge.KindCaseSerialization,
	}, rep.Kinds())
}

func TestHarness_ValueRoundTrip(t *testing.T) {
	path := writeUnit(t, "echo.star", "def echo(x):\n    return x\n")
	cases := []string{
		`null`,
		`123456789012345678901234567890`,
		`-7`,
		`1.5`,
		`"<b>&</b>"`,
		`[1, "two", [3.25]]`,
		`{"b": 1, "a": {"c": null}}`,
	}
	rep := newHarness().Run(context.Background(), toolforge.TestRequest{ToolFilePath: path, InputCases: cases})
	require.True(t, rep.Success, rep.ErrorMessages)
	assert.Equal(t, []string{
		`null`,
		`123456789012345678901234567890`,
		`-7`,
		`1.5`,
		`"<b>&</b>"`,
		`[1,"two",[3.25]]`,
		`{"a":{"c":null},"b":1}`,
	}, rep.Results)
}

func TestHarness_Idempotent(t *testing.T) {
	src := "def f(x):\n    if x % 2 == 1:\n        fail(\"odd\")\n    return x\n"
	path := writeUnit(t, "f.star", src)
	req := toolforge.TestRequest{ToolFilePath: path, InputCases: []string{"1", "2", "{bad", "4"}}
	h := newHarness()
	first := h.Run(context.Background(), req)
	second := h.Run(context.Background(), req)
	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Kinds(), second.Kinds())
}

func TestHarness_RunJSON(t *testing.T) {
	path := writeUnit(t, "echo.star", "def echo(x):\n    return x\n")
	body := `{"tool_file_path": "` + path + `", "input_cases": ["1", "\"x\""]}`
	rep := newHarness().RunJSON(context.Background(), []byte(body))
	require.True(t, rep.Success, rep.ErrorMessages)
	assert.Equal(t, []string{`1`, `"x"`}, rep.Results)

	rep = newHarness().RunJSON(context.Background(), []byte(`{"tool_file_path": "`+path+`", "input_cases": "1"}`))
	assert.False(t, rep.Success)
	assert.Equal(t, []toolforge.ErrorKind{toolforge.KindInvalidInputShape}, rep.Kinds())
	assert.Equal(t, path, rep.ToolFilePath)
}

func TestHarness_EditBetweenRuns(t *testing.T) {
	path := writeUnit(t, "flip.star", "def flip(x):\n    fail(\"not yet\")\n")
	h := newHarness()
	req := toolforge.TestRequest{ToolFilePath: path, InputCases: []string{`true`}}
	assert.False(t, h.Run(context.Background(), req).Success)
	require.NoError(t, os.WriteFile(path, []byte("def flip(x):\n    return not x\n"), 0o644))
	rep := h.Run(context.Background(), req)
	require.True(t, rep.Success, rep.ErrorMessages)
	assert.Equal(t, []string{`false`}, rep.Results)
}
