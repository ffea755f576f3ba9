package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/tool"
)

// SearchInput is the vector_search input. Omitted optional fields take the
// server defaults.
type SearchInput struct {
	Query            string            `json:"query" jsonschema:"search text"`
	K                int               `json:"k,omitempty" jsonschema:"number of hits"`
	Filters          map[string]string `json:"filters,omitempty" jsonschema:"metadata equality filters"`
	Reranker         string            `json:"reranker,omitempty" jsonschema:"none, cross_encoder or LLM"`
	SectionHardLimit *int              `json:"section_hard_limit,omitempty" jsonschema:"maximum characters of text per hit, 0 disables"`
}

// SummarizeInput is the context_summarize input.
type SummarizeInput struct {
	Hits        []core.SearchHit `json:"hits" jsonschema:"hits to summarize, usually from vector_search"`
	Style       string           `json:"style,omitempty" jsonschema:"bullet, abstract or qa"`
	TokenBudget *int             `json:"token_budget,omitempty" jsonschema:"token budget, 4 characters per token"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        tool.VectorSearch,
		Description: "Semantic search over the knowledge base. Returns ranked hits {id, text, score, meta}.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        tool.GetDocsByID,
		Description: "Resolve chunk ids to chunks and/or their parent documents (return: chunk, parent or both).",
	}, s.handleDocs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        tool.ContextSummarize,
		Description: "Summarize search hits into a short text with (id) citations.",
	}, s.handleSummarize)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, tool.VectorSearchResponse, error) {
	req := tool.VectorSearchRequest{
		Query:            input.Query,
		K:                input.K,
		Filters:          input.Filters,
		Reranker:         input.Reranker,
		SectionHardLimit: s.opts.Defaults.SectionHardLimit,
	}
	if input.SectionHardLimit != nil {
		req.SectionHardLimit = *input.SectionHardLimit
	}
	start := time.Now()
	out, err := s.retrieval.Search(ctx, req)
	logging.LogToolCall(s.opts.Logger, tool.VectorSearch, time.Since(start), err)
	if err != nil {
		return nil, tool.VectorSearchResponse{}, err
	}
	return nil, out, nil
}

func (s *Server) handleDocs(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input tool.GetDocsRequest,
) (*mcp.CallToolResult, tool.GetDocsResponse, error) {
	start := time.Now()
	out, err := s.retrieval.Docs(input)
	logging.LogToolCall(s.opts.Logger, tool.GetDocsByID, time.Since(start), err)
	if err != nil {
		return nil, tool.GetDocsResponse{}, err
	}
	return nil, out, nil
}

func (s *Server) handleSummarize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummarizeInput,
) (*mcp.CallToolResult, tool.SummarizeResponse, error) {
	req := tool.SummarizeRequest{Hits: input.Hits, Style: input.Style, TokenBudget: s.opts.Defaults.TokenBudget}
	if req.Style == "" {
		req.Style = s.opts.Defaults.Style
	}
	if input.TokenBudget != nil {
		req.TokenBudget = *input.TokenBudget
	}
	start := time.Now()
	out, err := s.retrieval.Summarize(ctx, req)
	logging.LogToolCall(s.opts.Logger, tool.ContextSummarize, time.Since(start), err)
	if err != nil {
		return nil, tool.SummarizeResponse{}, err
	}
	return nil, out, nil
}
