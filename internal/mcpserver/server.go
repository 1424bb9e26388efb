// Package mcpserver exposes the tool registry over the Model Context
// Protocol via stdio transport, so LLM clients can run vault operations.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/tools"
)

// Server wraps the MCP server with every registered tool bridged in.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
}

// New creates an MCP server mirroring the registry's toolset.
func New(registry *tools.Registry) *Server {
	s := &Server{registry: registry}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	for _, t := range registry.All() {
		s.mcp.AddTool(bridgeTool(t), s.handler(t))
	}

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource("othala://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// bridgeTool translates a registry tool's parameter schema into MCP options.
func bridgeTool(t *tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		var propOpts []mcp.PropertyOption
		propOpts = append(propOpts, mcp.Description(p.Description))
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		if len(p.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case tools.TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case tools.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case tools.TypeArray:
			propOpts = append(propOpts, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

func (s *Server) handler(t *tools.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := t.Execute(ctx, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !res.Success {
			return mcp.NewToolResultError(res.Err), nil
		}
		if res.Data == nil {
			return mcp.NewToolResultText(res.Message), nil
		}
		out, merr := json.MarshalIndent(res.Data, "", "  ")
		if merr != nil {
			return mcp.NewToolResultError(merr.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
