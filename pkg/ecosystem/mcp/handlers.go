package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/generator"
	"github.com/ormasoftchile/archetype/pkg/scenario"
	"github.com/ormasoftchile/archetype/pkg/script"
	"github.com/ormasoftchile/archetype/pkg/value"
)

// HandleValidate implements the archetype/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	doc, errs := script.ValidateFile(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if script.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d statements)", displayName(doc, path), len(doc.Body))
	if len(errs) > 0 {
		msg += "\nwarnings: " + formatWarnings(errs)
	}
	return textResult(msg), nil
}

// HandleSchema implements the archetype/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := script.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// Flows serves the tools that build flows. It keeps one loader per
// script directory, all sharing one cache.
type Flows struct {
	mu      sync.Mutex
	cache   *script.Cache
	loaders map[string]*script.Loader
}

// NewFlows returns flow handlers whose script cache holds at most
// cacheSize scripts (0 selects the default size).
func NewFlows(cacheSize int) *Flows {
	return &Flows{cache: script.NewCache(cacheSize), loaders: make(map[string]*script.Loader)}
}

// loader returns the loader for scripts in dir.
func (fl *Flows) loader(dir string) *script.Loader {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	l, ok := fl.loaders[dir]
	if !ok {
		l = script.NewLoader(os.DirFS(dir), fl.cache)
		fl.loaders[dir] = l
	}
	return l
}

// HandleInputs implements the archetype/inputs MCP tool.
func (fl *Flows) HandleInputs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, _, res := fl.build(ctx, req)
	if res != nil {
		return res, nil
	}
	return jsonResult(inputsResponse(f), false), nil
}

// HandleGenerate implements the archetype/generate MCP tool.
func (fl *Flows) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, fsys, res := fl.build(ctx, req)
	if res != nil {
		return res, nil
	}
	if f.State() != flow.Ready {
		return jsonResult(inputsResponse(f), true), nil
	}

	output, _ := req.GetArguments()["output"].(string)
	var sink generator.Sink
	mem := generator.NewMemSink()
	sink = mem
	if output != "" {
		sink = generator.NewDirSink(output)
	}

	written, err := generator.New(fsys, sink, generator.Options{}).Run(ctx, f)
	if err != nil {
		return errorResult(fmt.Sprintf("generate: %s", err)), nil
	}
	response := map[string]any{
		"state":   f.State().String(),
		"written": written,
	}
	if output == "" {
		response["files"] = mem.Files()
	}
	return jsonResult(response, false), nil
}

// HandleTest implements the archetype/test MCP tool.
func HandleTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	scenarioName, _ := args["scenario"].(string)

	runner := &scenario.Runner{Timeout: 30 * time.Second}

	var output *scenario.Output
	if scenarioName != "" {
		result, err := runner.RunScenario(ctx, path, scenarioName)
		if err != nil {
			return errorResult(fmt.Sprintf("run scenario: %s", err)), nil
		}
		output = &scenario.Output{
			Script:    path,
			Scenarios: []scenario.Result{*result},
			Summary:   scenario.Summary{Total: 1},
		}
		switch result.Status {
		case scenario.StatusPassed:
			output.Summary.Passed = 1
		case scenario.StatusFailed:
			output.Summary.Failed = 1
		case scenario.StatusSkipped:
			output.Summary.Skipped = 1
		default:
			output.Summary.Errors = 1
		}
	} else {
		var err error
		output, err = runner.RunAll(ctx, path, false)
		if err != nil {
			return errorResult(fmt.Sprintf("run tests: %s", err)), nil
		}
	}
	return jsonResult(output, output.Summary.Failed > 0 || output.Summary.Errors > 0), nil
}

// build loads the script named by the request and builds a flow with
// its answers. A non-nil result reports a problem to the caller.
func (fl *Flows) build(ctx context.Context, req mcp.CallToolRequest) (*flow.Flow, fs.FS, *mcp.CallToolResult) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return nil, nil, errorResult("path argument is required")
	}
	answers, err := valuesArg(args, "values")
	if err != nil {
		return nil, nil, errorResult(err.Error())
	}
	defaults, err := valuesArg(args, "defaults")
	if err != nil {
		return nil, nil, errorResult(err.Error())
	}
	skip, _ := args["skip_optional"].(bool)

	loader := fl.loader(filepath.Dir(path))
	s, err := loader.Load(filepath.Base(path))
	if err != nil {
		return nil, nil, errorResult(err.Error())
	}
	f := flow.New(s, loader, flow.Options{SkipOptional: skip, Defaults: defaults})
	if _, err := f.Build(ctx, answers); err != nil {
		return nil, nil, errorResult(fmt.Sprintf("build: %s", err))
	}
	return f, loader.FS(), nil
}

func valuesArg(args map[string]any, name string) (map[string]value.Value, error) {
	raw, ok := args[name].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make(map[string]value.Value, len(raw))
	for k, v := range raw {
		tv, err := value.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, k, err)
		}
		out[k] = tv
	}
	return out, nil
}

func inputsResponse(f *flow.Flow) map[string]any {
	response := map[string]any{
		"state":            f.State().String(),
		"can_be_generated": f.CanBeGenerated(),
		"answers":          f.Answers(),
	}
	if u := f.UnresolvedInputs(); len(u) > 0 {
		response["unresolved"] = u
	}
	return response
}

func displayName(doc *script.Document, path string) string {
	if doc != nil && doc.Name != "" {
		return doc.Name
	}
	return filepath.Base(path)
}

func formatErrors(errs []*script.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity != script.SeverityWarning {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*script.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == script.SeverityWarning {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonResult(v any, isErr bool) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
