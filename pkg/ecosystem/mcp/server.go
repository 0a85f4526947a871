package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with the archetype tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"archetype",
		version,
		server.WithToolCapabilities(true),
	)
	flows := NewFlows(0)

	s.AddTool(
		mcp.NewTool("archetype/validate",
			mcp.WithDescription("Validate an archetype script YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the script YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("archetype/inputs",
			mcp.WithDescription("Resolve a script with the given answers and report the next input that needs one"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the script YAML file")),
			mcp.WithObject("values", mcp.Description("Answers keyed by input path, e.g. {\"flavor\": \"mp\", \"docker.registry\": \"ghcr.io\"}")),
			mcp.WithObject("defaults", mcp.Description("External defaults keyed by input path")),
			mcp.WithBoolean("skip_optional", mcp.Description("Use defaults for optional inputs instead of asking")),
		),
		flows.HandleInputs,
	)

	s.AddTool(
		mcp.NewTool("archetype/generate",
			mcp.WithDescription("Generate a project from a script once every input is answered (in memory unless output is set)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the script YAML file")),
			mcp.WithObject("values", mcp.Description("Answers keyed by input path")),
			mcp.WithObject("defaults", mcp.Description("External defaults keyed by input path")),
			mcp.WithBoolean("skip_optional", mcp.Description("Use defaults for optional inputs instead of asking")),
			mcp.WithString("output", mcp.Description("Directory to write files to (omit for a dry run)")),
		),
		flows.HandleGenerate,
	)

	s.AddTool(
		mcp.NewTool("archetype/test",
			mcp.WithDescription("Run scenario tests for an archetype script"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the script YAML file")),
			mcp.WithString("scenario", mcp.Description("Run only the named scenario (optional)")),
		),
		HandleTest,
	)

	s.AddTool(
		mcp.NewTool("archetype/schema",
			mcp.WithDescription("Export the archetype/v1 script JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
