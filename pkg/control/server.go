package control

import (
	"context"
	"encoding/json"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server serves tools over the MCP protocol using the official MCP Go SDK.
type Server struct {
	server *mcp.Server
}

// NewServer creates a Server with the given implementation name and version.
func NewServer(name, version string, tools ...Tool) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}
	s.Register(tools...)
	return s
}

// Register adds tools to the server.
func (s *Server) Register(tools ...Tool) {
	for _, t := range tools {
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, toSDKHandler(t.Handler))
	}
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// toSDKHandler reports handler errors as tool results so the client sees
// them as failed calls rather than protocol errors.
func toSDKHandler(h Handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}
		result, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
