package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skosovsky/toolforge"
	"github.com/skosovsky/toolforge/generator"
)

func (c *cli) createCmd() *cobra.Command {
	var (
		spec     generator.Spec
		inputs   []string
		code     string
		codeFile string
		specFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a Starlark tool and record it",
		Example: `  toolforge create --name "Weather Lookup" --description "Current weather" \
    --input city:str --input units:str:metric --code-file body.star`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if specFile != "" {
				data, err := readSource(specFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &spec); err != nil {
					return fmt.Errorf("parse spec %s: %w", specFile, err)
				}
			}
			for _, in := range inputs {
				p, err := parseInput(in)
				if err != nil {
					return err
				}
				spec.Inputs = append(spec.Inputs, p)
			}
			switch {
			case codeFile != "":
				data, err := readSource(codeFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				spec.Code = string(data)
			case code != "":
				spec.Code = code
			}
			rec, err := c.forge.Create(cmd.Context(), spec)
			if err != nil {
				return err
			}
			return c.printJSON(rec)
		},
	}
	f := cmd.Flags()
	f.StringVar(&specFile, "spec", "", "JSON tool spec file (- for stdin); flags are applied on top")
	f.StringVar(&spec.Name, "name", "", "tool name")
	f.StringVar(&spec.Description, "description", "", "tool description")
	f.StringArrayVar(&inputs, "input", nil, "input as name:type[:default]; inputs without a default are required")
	f.StringVar(&code, "code", "", "function body")
	f.StringVar(&codeFile, "code-file", "", "file holding the function body (- for stdin)")
	f.StringSliceVar(&spec.Imports, "import", nil, "module to load() in the generated file")
	f.StringVar(&spec.Docstring, "docstring", "", "docstring override")
	f.StringVar(&spec.ReturnType, "return-type", "", "documented return type")
	f.BoolVar(&spec.Raw, "raw", false, "write the code verbatim instead of generating a wrapper")
	return cmd
}

func (c *cli) testCmd() *cobra.Command {
	var (
		requestFile string
		name        string
	)
	cmd := &cobra.Command{
		Use:   "test [path] [case...]",
		Short: "Run JSON input cases through a tool's entry point",
		Example: `  toolforge test tools/calculator.star '{"a": 2, "b": 3}'
  toolforge test --name calculator '{"a": 2, "b": 3}'
  toolforge test --request request.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rep toolforge.TestReport
			switch {
			case requestFile != "":
				data, err := readSource(requestFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				rep = c.forge.TestJSON(cmd.Context(), data)
			case name != "":
				var err error
				rep, err = c.forge.TestByName(cmd.Context(), name, args)
				if err != nil {
					return err
				}
			default:
				if len(args) == 0 {
					return fmt.Errorf("test needs a tool path, --name or --request")
				}
				rep = c.forge.Test(cmd.Context(), toolforge.TestRequest{ToolFilePath: args[0], InputCases: args[1:]})
			}
			if err := c.printJSON(rep); err != nil {
				return err
			}
			if !rep.Success {
				return errReportFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestFile, "request", "", `JSON request {"tool_file_path": ..., "input_cases": [...]} (- for stdin)`)
	cmd.Flags().StringVar(&name, "name", "", "test a recorded tool by name")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := c.forge.List(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(recs)
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a recorded tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.forge.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(rec)
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a recorded tool and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.forge.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Tool '%s' deleted successfully\n", rec.Name)
			return nil
		},
	}
}

func (c *cli) ideasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ideas <description>",
		Short: "Ask how to implement a tool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := c.forge.Ideas(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, text)
			return nil
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run a knowledge search and print the raw response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := c.forge.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				out.Reset()
				out.Write(raw)
			}
			fmt.Fprintln(c.stdout, out.String())
			return nil
		},
	}
}

// parseInput parses name:type[:default]. A str default is taken literally;
// other defaults are read as JSON, falling back to the plain string.
func parseInput(s string) (generator.Param, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return generator.Param{}, fmt.Errorf("invalid --input %q: want name:type[:default]", s)
	}
	p := generator.Param{Name: parts[0], Type: parts[1], Required: len(parts) == 2}
	switch {
	case len(parts) == 2:
	case p.Type == "str":
		p.Default = parts[2]
	default:
		dec := json.NewDecoder(strings.NewReader(parts[2]))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() {
			v = parts[2]
		}
		p.Default = v
	}
	return p, nil
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
