package generator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/skosovsky/toolforge"
)

// ErrInvalidSpec is wrapped by every validation failure.
var ErrInvalidSpec = errors.New("invalid tool spec")

// ParamTypes lists the accepted Param.Type values.
var ParamTypes = []string{"str", "int", "float", "bool", "list", "dict", "any"}

// Param is one named input the entry point unpacks from its argument dict.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type" enum:"str,int,float,bool,list,dict,any"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Spec describes a tool to generate.
type Spec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Inputs      []Param  `json:"inputs,omitempty"`
	Code        string   `json:"code,omitempty"`
	Imports     []string `json:"imports,omitempty"`
	Docstring   string   `json:"docstring,omitempty"`
	ReturnType  string   `json:"return_type,omitempty"`
	// Raw writes Code verbatim instead of rendering the template around it.
	Raw bool `json:"raw,omitempty"`
}

// reserved holds Starlark keywords and names the grammar reserves.
var reserved = []string{
	"and", "as", "assert", "async", "await", "break", "class", "continue",
	"def", "del", "elif", "else", "except", "finally", "for", "from",
	"global", "if", "import", "in", "is", "lambda", "load", "nonlocal",
	"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}

// Validate checks s against the declared module manifest and returns the
// normalized tool name.
func (s Spec) Validate(modules []string) (string, error) {
	if strings.TrimSpace(s.Name) == "" {
		return "", invalid("name is required")
	}
	if strings.TrimSpace(s.Description) == "" {
		return "", invalid("description is required")
	}
	name, err := toolforge.NormalizeName(s.Name)
	if err != nil {
		return "", invalid("%v", err)
	}
	if err := checkIdent(name); err != nil {
		return "", invalid("tool name %q: %v", name, err)
	}
	if s.Raw {
		if strings.TrimSpace(s.Code) == "" {
			return "", invalid("raw tool needs code")
		}
		return name, nil
	}
	for _, m := range s.Imports {
		if !slices.Contains(modules, m) {
			return "", invalid("module %q is not declared (available: %s)", m, strings.Join(modules, ", "))
		}
	}
	seen := make(map[string]bool, len(s.Inputs))
	for _, p := range s.Inputs {
		if err := checkIdent(p.Name); err != nil {
			return "", invalid("input %q: %v", p.Name, err)
		}
		if p.Name == "args" {
			return "", invalid("input name %q shadows the entry point argument", p.Name)
		}
		if seen[p.Name] {
			return "", invalid("duplicate input %q", p.Name)
		}
		seen[p.Name] = true
		if !slices.Contains(ParamTypes, p.Type) {
			return "", invalid("input %q: unknown type %q (want one of %s)", p.Name, p.Type, strings.Join(ParamTypes, ", "))
		}
	}
	return name, nil
}

func checkIdent(s string) error {
	if s == "" {
		return errors.New("empty identifier")
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return errors.New("must not start with a digit")
			}
		default:
			return fmt.Errorf("invalid character %q", r)
		}
	}
	if slices.Contains(reserved, s) {
		return errors.New("reserved word")
	}
	return nil
}
