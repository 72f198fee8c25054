// Package toolforge loads agent-authored tools from disk and exercises them.
//
// # Overview
//
// An LLM agent describes a capability; a generator writes it out as a Tool
// Unit: a source file exposing exactly one entry point named like the file.
// The Harness then loads that file fresh, resolves the entry point, and runs a
// batch of JSON input cases through it:
//
//	load unit → resolve entry point → for each case: parse JSON → invoke → encode JSON
//
// The result is always a TestReport. Whole-call failures (missing path, unit
// not found, load error, entry point mismatch) stop before any case runs;
// per-case failures (parse, execution, serialization) are recorded and the
// remaining cases still run. The harness never panics or returns an error on
// behalf of a broken Tool Unit, so the agent loop that called it keeps going.
//
// Loading is pluggable through Loader and EntryPoint. The Starlark backend
// lives in adapters/sandbox/starlark.
//
// The package also carries the small tool engine the factory is exposed
// through: Tool, NewTool (schema derived from the argument struct and
// validated on every call), Registry and Middleware.
//
// # Example
//
//	h := toolforge.NewHarness(starlarksandbox.NewLoader())
//	rep := h.Run(ctx, toolforge.TestRequest{
//	    ToolFilePath: "tools/calculator.star",
//	    InputCases:   []string{`{"operation": "add", "a": 1, "b": 2}`},
//	})
//	if !rep.Success { ... rep.ErrorMessages ... }
package toolforge
