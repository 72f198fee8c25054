package starlarksandbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{"it's \"quoted\"", `"it's \"quoted\""`},
		{json.Number("42"), "42"},
		{json.Number("2.5"), "2.5"},
		{float64(3), "3.0"},
		{[]any{"a", int64(1)}, `["a", 1]`},
		{map[string]any{"b": false, "a": nil}, `{"a": None, "b": False}`},
	}
	for _, tt := range tests {
		got, err := Literal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFromGo_Unsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported argument type")
}

func TestToGo_DeepNesting(t *testing.T) {
	l := starlark.NewList(nil)
	require.NoError(t, l.Append(l))
	_, err := ToGo(l)
	assert.ErrorIs(t, err, errTooDeep)
}

func TestValue_MarshalJSON_Dict(t *testing.T) {
	d := starlark.NewDict(2)
	require.NoError(t, d.SetKey(starlark.String("n"), starlark.MakeInt(1)))
	require.NoError(t, d.SetKey(starlark.String("s"), starlark.Tuple{starlark.String("x")}))
	b, err := json.Marshal(Value{Value: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1,"s":["x"]}`, string(b))
}

func TestValue_MarshalJSON_ScalarKeys(t *testing.T) {
	d := starlark.NewDict(4)
	require.NoError(t, d.SetKey(starlark.MakeInt(1), starlark.String("a")))
	require.NoError(t, d.SetKey(starlark.Float(1.5), starlark.String("b")))
	require.NoError(t, d.SetKey(starlark.False, starlark.String("c")))
	require.NoError(t, d.SetKey(starlark.None, starlark.String("d")))
	b, err := json.Marshal(Value{Value: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"a","1.5":"b","false":"c","null":"d"}`, string(b))

	bad := starlark.NewDict(1)
	require.NoError(t, bad.SetKey(starlark.Tuple{starlark.MakeInt(1)}, starlark.None))
	_, err = json.Marshal(Value{Value: bad})
	assert.ErrorContains(t, err, "not a string or scalar")
}
