package starlarksandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// maxDepth bounds nesting so self-referencing lists fail instead of recursing forever.
const maxDepth = 256

var errTooDeep = errors.New("value nested too deeply")

// Value is an entry point result. It encodes itself to JSON.
type Value struct {
	starlark.Value
}

// MarshalJSON converts the Starlark value to JSON. Values with no JSON form
// (functions, sets, tuple dict keys, NaN) return an error.
func (v Value) MarshalJSON() ([]byte, error) {
	g, err := ToGo(v.Value)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(g); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// FromGo converts a JSON-shaped Go value into a Starlark value. Integral
// json.Numbers become Starlark ints of any size.
func FromGo(v any) (starlark.Value, error) {
	return fromGo(v, 0)
}

func fromGo(v any, depth int) (starlark.Value, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case string:
		return starlark.String(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case json.Number:
		return numberFromJSON(x)
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := fromGo(e, depth+1)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = starlark.String(e)
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			sv, err := fromGo(x[k], depth+1)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported argument type %T", v)
}

func numberFromJSON(n json.Number) (starlark.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		if b, ok := new(big.Int).SetString(s, 10); ok {
			return starlark.MakeBigInt(b), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return starlark.Float(f), nil
}

// ToGo converts a Starlark value into plain Go values that encoding/json can
// encode. Tuples become arrays and structs become objects.
func ToGo(v starlark.Value) (any, error) {
	return toGo(v, 0)
}

func toGo(v starlark.Value, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return json.Number(x.BigInt().String()), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("float %s has no JSON representation", x.String())
		}
		return f, nil
	case *starlark.List:
		return sequenceToGo(x, x.Len(), depth)
	case starlark.Tuple:
		return sequenceToGo(x, x.Len(), depth)
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			k, err := dictKey(item[0])
			if err != nil {
				return nil, err
			}
			g, err := toGo(item[1], depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = g
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := make(map[string]any)
		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err != nil {
				return nil, err
			}
			g, err := toGo(attr, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = g
		}
		return out, nil
	}
	return nil, fmt.Errorf("value of type %s is not JSON serializable", v.Type())
}

// dictKey renders a scalar key as an object member name: ints and floats in
// their literal form, bools as true/false and None as null. A string key and
// a scalar with the same rendering collapse into one member.
func dictKey(k starlark.Value) (string, error) {
	switch x := k.(type) {
	case starlark.String:
		return string(x), nil
	case starlark.Int:
		return x.String(), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("dict key %s has no JSON representation", x.String())
		}
		return x.String(), nil
	case starlark.Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case starlark.NoneType:
		return "null", nil
	}
	return "", fmt.Errorf("dict key %s of type %s is not a string or scalar", k.String(), k.Type())
}

func sequenceToGo(seq starlark.Indexable, n, depth int) ([]any, error) {
	out := make([]any, n)
	for i := range n {
		g, err := toGo(seq.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

// Literal renders a JSON-shaped Go value as Starlark source text.
func Literal(v any) (string, error) {
	sv, err := FromGo(v)
	if err != nil {
		return "", err
	}
	return sv.String(), nil
}
