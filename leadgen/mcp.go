package leadgen

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mapforge/mapleads/kit"
	"github.com/mapforge/mapleads/leads"
)

// RegisterMCP registers the scraper tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerSearch(srv)
	s.registerBulkSearch(srv)
	s.registerStatus(srv)
}

// mw is the middleware stack applied to every scraper tool endpoint.
func (s *Service) mw(op string) kit.Middleware {
	return kit.Chain(kit.Logging(s.logger, op))
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

type searchResult struct {
	Query string       `json:"query"`
	Count int          `json:"count"`
	Leads []leads.Lead `json:"leads"`
}

func (s *Service) registerSearch(srv *mcp.Server) {
	type req struct {
		Keyword    string `json:"keyword"`
		City       string `json:"city"`
		Country    string `json:"country"`
		MaxResults int    `json:"max_results"`
	}

	tool := &mcp.Tool{
		Name:        "maps_search_leads",
		Description: "Search Google Maps for business leads matching a keyword in a city and country",
		InputSchema: inputSchema(map[string]any{
			"keyword":     map[string]any{"type": "string", "description": "Business type or keyword"},
			"city":        map[string]any{"type": "string", "description": "City name"},
			"country":     map[string]any{"type": "string", "description": "Country name"},
			"max_results": map[string]any{"type": "integer", "description": "Maximum leads to extract (10-100, default 20)"},
		}, []string{"keyword", "city", "country"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		q := Query{Keyword: p.Keyword, City: p.City, Country: p.Country}
		batch, err := s.Run(ctx, q, p.MaxResults, nil)
		if err != nil {
			return nil, err
		}
		batch = leads.Dedup(batch)
		return &searchResult{Query: q.String(), Count: len(batch), Leads: batch}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &p,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decode)
}

func (s *Service) registerBulkSearch(srv *mcp.Server) {
	type req struct {
		Searches   []Query `json:"searches"`
		MaxResults int     `json:"max_results"`
	}

	tool := &mcp.Tool{
		Name:        "maps_bulk_search",
		Description: "Run several Google Maps lead searches in sequence and return the combined, deduplicated leads",
		InputSchema: inputSchema(map[string]any{
			"searches": map[string]any{
				"type":        "array",
				"description": "Searches to run",
				"items": inputSchema(map[string]any{
					"keyword": map[string]any{"type": "string"},
					"city":    map[string]any{"type": "string"},
					"country": map[string]any{"type": "string"},
				}, []string{"keyword", "city", "country"}),
			},
			"max_results": map[string]any{"type": "integer", "description": "Maximum leads per search (10-100, default 20)"},
		}, []string{"searches"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		batch, err := s.RunBulk(ctx, p.Searches, p.MaxResults, nil)
		if err != nil {
			return nil, err
		}
		batch = leads.Dedup(batch)
		return &searchResult{Count: len(batch), Leads: batch}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &p,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decode)
}

func (s *Service) registerStatus(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "maps_search_status",
		Description: "Report whether a lead search is currently running",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return map[string]bool{"running": s.Running()}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &req{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.mw(tool.Name)(endpoint), decode)
}
