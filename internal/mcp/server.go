package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescry/codescry/internal/debug"
	"github.com/codescry/codescry/internal/registry"
	"github.com/codescry/codescry/internal/version"
)

// Server exposes the registry over the Model Context Protocol so editor
// agents can create projects and query indexes over stdio.
type Server struct {
	reg *registry.Registry
	srv *mcp.Server
}

// NewServer builds the MCP server and registers all tools.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{
		reg: reg,
		srv: mcp.NewServer(&mcp.Implementation{
			Name:    "codescry",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	debug.SetStdioServerMode(true)
	debug.Printf("mcp server starting (%s)\n", version.Info())
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// textResult wraps plain text in a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// jsonResult marshals v as indented JSON into a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a tool-level failure without failing the protocol
// call itself.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// decodeArgs unmarshals the raw tool arguments into args.
func decodeArgs(req *mcp.CallToolRequest, args any) error {
	if len(req.Params.Arguments) == 0 {
		return fmt.Errorf("missing tool arguments")
	}
	if err := json.Unmarshal(req.Params.Arguments, args); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
