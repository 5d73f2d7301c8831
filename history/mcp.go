package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mapforge/mapleads/kit"
	"github.com/mapforge/mapleads/leads"
)

// RegisterMCP registers the search-history tools on an MCP server.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	s.registerList(srv)
	s.registerGet(srv)
	s.registerDelete(srv)
	s.registerExport(srv)
}

// mw is the middleware stack applied to every history tool endpoint.
func (s *Store) mw(op string) kit.Middleware {
	return kit.Chain(kit.Logging(slog.Default(), op))
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Store) registerList(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "history_list_searches",
		Description: "List recent saved lead searches, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum rows to return (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Recent(ctx, p.Limit)
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decodeJSON[req]())
}

func (s *Store) registerGet(srv *mcp.Server) {
	type req struct {
		ID int64 `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "history_get_search",
		Description: "Load a saved search with its full lead list",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Search ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		detail, err := s.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			return nil, fmt.Errorf("history: search %d not found", p.ID)
		}
		return detail, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decodeJSON[req]())
}

func (s *Store) registerDelete(srv *mcp.Server) {
	type req struct {
		ID int64 `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "history_delete_search",
		Description: "Delete a saved search",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Search ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := s.Delete(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decodeJSON[req]())
}

func (s *Store) registerExport(srv *mcp.Server) {
	type req struct {
		ID int64 `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "history_export_csv",
		Description: "Export a saved search's leads as CSV",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Search ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		detail, err := s.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			return nil, fmt.Errorf("history: search %d not found", p.ID)
		}
		var buf bytes.Buffer
		if err := leads.WriteCSV(&buf, detail.Leads); err != nil {
			return nil, err
		}
		return map[string]string{"csv": buf.String()}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decodeJSON[req]())
}

// decodeJSON builds a kit decode function for a plain JSON request type.
func decodeJSON[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		p := new(T)
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{
			Request:   p,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}
}
