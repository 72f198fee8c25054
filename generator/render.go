package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"text/template"

	starlarksandbox "github.com/skosovsky/toolforge/adapters/sandbox/starlark"
)

const placeholderBody = `return {"status": "success", "message": "Tool executed"}`

const unitTemplate = `# {{.Entry}} - {{oneLine .Description}}
# Auto-generated tool
{{- if .Imports}}
{{range .Imports}}
load({{quote .}}, {{quote .}})
{{- end}}
{{- end}}

def {{.Entry}}(args):
    """{{.Doc}}
{{- if .Params}}

    Args:
{{- range .Params}}
        {{.Name}} ({{.Type}}){{if .Description}}: {{docText (oneLine .Description)}}{{end}}{{if not .Required}} Defaults to {{docText .Default}}.{{end}}
{{- end}}
{{- end}}
{{- if .ReturnType}}

    Returns:
        {{docText (oneLine .ReturnType)}}
{{- end}}
    """
{{- range .Params}}
    {{.Name}} = {{if .Required}}args[{{quote .Name}}]{{else}}args.get({{quote .Name}}, {{.Default}}){{end}}
{{- end}}
{{.Body}}
`

var unitTmpl = template.Must(template.New("unit").Funcs(template.FuncMap{
	"quote":   quote,
	"oneLine": oneLine,
	"docText": docText,
}).Parse(unitTemplate))

type renderParam struct {
	Name        string
	Type        string
	Description string
	Default     string
	Required    bool
}

type renderData struct {
	Entry       string
	Description string
	Doc         string
	ReturnType  string
	Imports     []string
	Params      []renderParam
	Body        string
}

// Render produces the Tool Unit source for s. entry is the normalized name
// returned by Spec.Validate.
func Render(entry string, s Spec) ([]byte, error) {
	if s.Raw {
		return []byte(s.Code), nil
	}
	data := renderData{
		Entry:       entry,
		Description: s.Description,
		Doc:         docBlock(s),
		ReturnType:  s.ReturnType,
		Imports:     s.Imports,
		Body:        indent(s.Code),
	}
	for _, p := range s.Inputs {
		rp := renderParam{Name: p.Name, Type: p.Type, Description: p.Description, Required: p.Required}
		if !p.Required {
			lit, err := defaultLiteral(p)
			if err != nil {
				return nil, fmt.Errorf("%w: input %q default: %w", ErrInvalidSpec, p.Name, err)
			}
			rp.Default = lit
		}
		data.Params = append(data.Params, rp)
	}
	var buf bytes.Buffer
	if err := unitTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", entry, err)
	}
	return buf.Bytes(), nil
}

// defaultLiteral renders the default of an optional input as a Starlark
// literal. Whole floats on int inputs are narrowed so 3 stays 3, not 3.0.
func defaultLiteral(p Param) (string, error) {
	v := p.Default
	switch d := v.(type) {
	case float64:
		if p.Type == "int" && d == math.Trunc(d) && math.Abs(d) < 1<<53 {
			v = int64(d)
		}
	case json.Number:
		if p.Type == "float" {
			if f, err := d.Float64(); err == nil {
				v = f
			}
		}
	case int:
		if p.Type == "float" {
			v = float64(d)
		}
	}
	return starlarksandbox.Literal(v)
}

func quote(s string) string {
	lit, err := starlarksandbox.Literal(s)
	if err != nil {
		return `""`
	}
	return lit
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// docText makes s safe inside a triple-quoted string.
func docText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

func docBlock(s Spec) string {
	doc := s.Docstring
	if strings.TrimSpace(doc) == "" {
		doc = s.Description
	}
	lines := strings.Split(strings.TrimSpace(docText(doc)), "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			lines[i] = "    " + strings.TrimSpace(lines[i])
		} else {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

func indent(code string) string {
	if strings.TrimSpace(code) == "" {
		code = placeholderBody
	}
	lines := strings.Split(strings.TrimRight(code, "\n\t "), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = "    " + strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}
