package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/skosovsky/toolforge"
	"github.com/skosovsky/toolforge/generator"
	"github.com/skosovsky/toolforge/knowledge"
	"github.com/skosovsky/toolforge/store"
)

// Agent tool names.
const (
	ToolCreate = "create_tool"
	ToolTest   = "test_tool"
	ToolList   = "list_tools"
	ToolGet    = "get_tool"
	ToolDelete = "delete_tool"
	ToolIdeas  = "get_tool_implementation_ideas"
	ToolSearch = "search_knowledge"
)

type nameArgs struct {
	Name string `json:"name" description:"Tool name as given to create_tool"`
}

type ideasArgs struct {
	ToolDescription string `json:"tool_description" description:"What the tool should be able to do"`
}

type searchArgs struct {
	Query string `json:"query" description:"Search query describing the implementation goal"`
}

type createResult struct {
	Name       string         `json:"name"`
	FilePath   string         `json:"file_path"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Message    string         `json:"message"`
}

type toolSummary struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	FilePath    string         `json:"file_path"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type listResult struct {
	Tools []toolSummary `json:"tools"`
}

type deleteResult struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type textResult struct {
	Result string `json:"result"`
}

type rawResult struct {
	Result json.RawMessage `json:"result"`
}

func (f *Forge) buildTools() ([]toolforge.Tool, error) {
	testSchema, err := jsonschema.For[toolforge.TestRequest](nil)
	if err != nil {
		return nil, fmt.Errorf("test_tool schema: %w", err)
	}
	testParams, err := toolforge.SchemaMap(testSchema)
	if err != nil {
		return nil, fmt.Errorf("test_tool schema: %w", err)
	}

	create, err := toolforge.NewTool(ToolCreate,
		"Create a new tool. Writes a Starlark file named after the tool whose entry point has the same name, "+
			"then records it. Use test_tool on the returned file_path before relying on it.",
		f.createTool, toolforge.WithDangerous(), toolforge.WithTags("factory"))
	if err != nil {
		return nil, err
	}
	test, err := toolforge.NewRawTool(ToolTest,
		"Load a tool file and run each input case (a JSON document passed as the sole argument) through its entry point. "+
			"Returns per-case results and error messages; failures never abort the remaining cases.",
		testParams, f.testTool, toolforge.WithTags("factory"))
	if err != nil {
		return nil, err
	}
	list, err := toolforge.NewTool(ToolList, "List all created tools.", f.listTools, toolforge.WithTags("factory"))
	if err != nil {
		return nil, err
	}
	get, err := toolforge.NewTool(ToolGet, "Get the stored details of one tool.", f.getTool, toolforge.WithTags("factory"))
	if err != nil {
		return nil, err
	}
	del, err := toolforge.NewTool(ToolDelete, "Delete a tool and its file.", f.deleteTool,
		toolforge.WithDangerous(), toolforge.WithTags("factory"))
	if err != nil {
		return nil, err
	}
	ideas, err := toolforge.NewTool(ToolIdeas,
		"Ask an external model how to implement a tool with the described functionality.",
		f.ideasTool, toolforge.WithTags("knowledge"))
	if err != nil {
		return nil, err
	}
	search, err := toolforge.NewTool(ToolSearch,
		"Search for the current state-of-the-art way to implement something. Returns the raw API response.",
		f.searchTool, toolforge.WithTags("knowledge"))
	if err != nil {
		return nil, err
	}
	return []toolforge.Tool{create, test, list, get, del, ideas, search}, nil
}

func (f *Forge) createTool(ctx context.Context, spec generator.Spec) (createResult, error) {
	rec, err := f.Create(ctx, spec)
	if err != nil {
		return createResult{}, agentError(err)
	}
	return createResult{
		Name:       rec.Name,
		FilePath:   rec.FilePath,
		Parameters: rec.Parameters,
		Message:    fmt.Sprintf("Tool '%s' created successfully at %s", rec.Name, rec.FilePath),
	}, nil
}

// testTool hands the raw arguments to the harness so that a malformed request
// comes back as a report instead of a schema error.
func (f *Forge) testTool(ctx context.Context, args []byte) ([]byte, error) {
	return json.Marshal(f.TestJSON(ctx, args))
}

func (f *Forge) listTools(ctx context.Context, _ struct{}) (listResult, error) {
	recs, err := f.List(ctx)
	if err != nil {
		return listResult{}, err
	}
	out := listResult{Tools: make([]toolSummary, 0, len(recs))}
	for _, r := range recs {
		out.Tools = append(out.Tools, toolSummary{
			Name:        r.Name,
			Description: r.Description,
			FilePath:    r.FilePath,
			Parameters:  r.Parameters,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (f *Forge) getTool(ctx context.Context, args nameArgs) (store.Record, error) {
	rec, err := f.Get(ctx, args.Name)
	if err != nil {
		return store.Record{}, agentError(err)
	}
	return rec, nil
}

func (f *Forge) deleteTool(ctx context.Context, args nameArgs) (deleteResult, error) {
	rec, err := f.Delete(ctx, args.Name)
	if err != nil {
		return deleteResult{}, agentError(err)
	}
	return deleteResult{Name: rec.Name, Message: fmt.Sprintf("Tool '%s' deleted successfully", rec.Name)}, nil
}

func (f *Forge) ideasTool(ctx context.Context, args ideasArgs) (textResult, error) {
	text, err := f.Ideas(ctx, args.ToolDescription)
	if err != nil {
		return textResult{}, agentError(err)
	}
	return textResult{Result: text}, nil
}

func (f *Forge) searchTool(ctx context.Context, args searchArgs) (rawResult, error) {
	raw, err := f.Search(ctx, args.Query)
	if err != nil {
		return rawResult{}, agentError(err)
	}
	return rawResult{Result: raw}, nil
}

// agentError turns failures the agent can act on into ClientErrors so their
// message reaches the model; anything else stays a SystemError.
func agentError(err error) error {
	switch {
	case errors.Is(err, generator.ErrInvalidSpec),
		errors.Is(err, generator.ErrFileExists),
		errors.Is(err, store.ErrExists),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, knowledge.ErrMissingAPIKey):
		return &toolforge.ClientError{Reason: err.Error(), Err: err}
	}
	return err
}
