// Package tools provides shared types and helpers for registering MCP tools
// on an MCP server instance.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Registration pairs an MCP tool definition with its handler function.
type Registration struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// RegisterAll adds every Registration to s. It registers nothing and returns
// an error if any entry lacks a name or handler, or if two entries share a
// name.
func RegisterAll(s *server.MCPServer, registrations []Registration) error {
	seen := make(map[string]bool, len(registrations))
	for i, r := range registrations {
		if r.Tool.Name == "" {
			return fmt.Errorf("tools: registration %d has no name", i)
		}
		if r.Handler == nil {
			return fmt.Errorf("tools: %s has no handler", r.Tool.Name)
		}
		if seen[r.Tool.Name] {
			return fmt.Errorf("tools: duplicate tool %s", r.Tool.Name)
		}
		seen[r.Tool.Name] = true
	}

	for _, r := range registrations {
		s.AddTool(r.Tool, r.Handler)
	}
	return nil
}
