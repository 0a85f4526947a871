// Package main provides the archetype-mcp binary, an MCP server that lets
// agents validate scripts, inspect their inputs and generate projects.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	amcp "github.com/ormasoftchile/archetype/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	s := amcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
