package tool

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/search"
	"github.com/hupe1980/ragmesh/summarize"
)

// VectorSearchRequest is the typed vector_search payload.
type VectorSearchRequest struct {
	Query            string            `json:"query" jsonschema:"search text"`
	K                int               `json:"k,omitempty" jsonschema:"number of hits, default 8"`
	Filters          map[string]string `json:"filters,omitempty" jsonschema:"metadata equality filters"`
	Reranker         string            `json:"reranker,omitempty" jsonschema:"none, cross_encoder or LLM"`
	SectionHardLimit int               `json:"section_hard_limit,omitempty" jsonschema:"maximum characters of text per hit, 0 disables"`
}

// VectorSearchResponse lists ranked hits.
type VectorSearchResponse struct {
	Hits []core.SearchHit `json:"hits"`
}

// GetDocsRequest is the typed get_docs_by_id payload.
type GetDocsRequest struct {
	IDs    []string `json:"ids" jsonschema:"chunk or parent ids"`
	Return string   `json:"return,omitempty" jsonschema:"chunk, parent or both"`
}

// GetDocsResponse lists resolved documents.
type GetDocsResponse struct {
	Docs []core.Doc `json:"docs"`
}

// SummarizeRequest is the typed context_summarize payload.
type SummarizeRequest struct {
	Hits        []core.SearchHit `json:"hits" jsonschema:"hits to summarize"`
	Style       string           `json:"style,omitempty" jsonschema:"bullet, abstract or qa"`
	TokenBudget int              `json:"token_budget,omitempty" jsonschema:"token budget, 4 characters per token"`
}

// SummarizeResponse is the summary with citation offsets.
type SummarizeResponse = summarize.Result

var retrievalTools = map[string]Info{
	VectorSearch: {
		Name:        VectorSearch,
		Kind:        KindRetrieval,
		Description: "Semantic search over the knowledge base. Returns ranked hits {id, text, score, meta}.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":              map[string]any{"type": "string"},
				"k":                  map[string]any{"type": "integer", "minimum": 1},
				"filters":            map[string]any{"type": "object"},
				"reranker":           map[string]any{"type": "string", "enum": []string{search.RerankerNone, search.RerankerCrossEncoder, search.RerankerLLM}},
				"section_hard_limit": map[string]any{"type": "integer", "minimum": 0},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	},
	GetDocsByID: {
		Name:        GetDocsByID,
		Kind:        KindRetrieval,
		Description: "Resolve chunk ids to chunks and/or their parent documents.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ids":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"return": map[string]any{"type": "string", "enum": []string{string(docstore.ModeChunk), string(docstore.ModeParent), string(docstore.ModeBoth)}},
			},
			"required":             []string{"ids"},
			"additionalProperties": false,
		},
	},
	ContextSummarize: {
		Name:        ContextSummarize,
		Kind:        KindRetrieval,
		Description: "Summarize hits into a short text with (id) citations.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hits":         map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				"style":        map[string]any{"type": "string", "enum": []string{summarize.StyleBullet, summarize.StyleAbstract, summarize.StyleQA}},
				"token_budget": map[string]any{"type": "integer", "minimum": 0},
			},
			"required":             []string{"hits"},
			"additionalProperties": false,
		},
	},
}

func invalid(source, format string, args ...any) error {
	return core.NewError(core.CodeInvalidArg, source, format, args...)
}

func (r *Router) vectorSearch(ctx context.Context, payload map[string]any) (map[string]any, error) {
	req := VectorSearchRequest{K: r.opts.Defaults.K, Reranker: search.RerankerNone, SectionHardLimit: r.opts.Defaults.SectionHardLimit}
	if err := decode(VectorSearch, payload, retrievalTools[VectorSearch].Parameters, &req); err != nil {
		return nil, err
	}
	resp, err := r.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return flatten(resp)
}

// Search runs a typed vector_search request. A zero K takes the router default.
func (r *Router) Search(ctx context.Context, req VectorSearchRequest) (VectorSearchResponse, error) {
	if req.K == 0 {
		req.K = r.opts.Defaults.K
	}
	if strings.TrimSpace(req.Query) == "" {
		return VectorSearchResponse{}, invalid(VectorSearch, "'query' must be a non-empty string")
	}
	if req.K <= 0 {
		return VectorSearchResponse{}, invalid(VectorSearch, "'k' must be a positive integer")
	}
	if req.SectionHardLimit < 0 {
		return VectorSearchResponse{}, invalid(VectorSearch, "'section_hard_limit' must be >= 0")
	}
	if req.Reranker == "" {
		req.Reranker = search.RerankerNone
	}
	if r.services.Search == nil {
		return VectorSearchResponse{}, core.NewError(core.CodeIndexNotConfigured, VectorSearch, "no search service registered; build an index first")
	}
	start := time.Now()
	hits, err := r.services.Search.Search(ctx, search.Request{
		Query:            req.Query,
		K:                req.K,
		Filters:          req.Filters,
		Reranker:         req.Reranker,
		SectionHardLimit: req.SectionHardLimit,
	})
	logging.LogSearch(r.opts.Logger, VectorSearch, req.K, len(hits), time.Since(start), err)
	if err != nil {
		return VectorSearchResponse{}, err
	}
	if hits == nil {
		hits = []core.SearchHit{}
	}
	return VectorSearchResponse{Hits: hits}, nil
}

func (r *Router) getDocs(payload map[string]any) (map[string]any, error) {
	req := GetDocsRequest{Return: string(docstore.ModeChunk)}
	if err := decode(GetDocsByID, payload, retrievalTools[GetDocsByID].Parameters, &req); err != nil {
		return nil, err
	}
	resp, err := r.Docs(req)
	if err != nil {
		return nil, err
	}
	return flatten(resp)
}

// Docs runs a typed get_docs_by_id request.
func (r *Router) Docs(req GetDocsRequest) (GetDocsResponse, error) {
	if len(req.IDs) == 0 {
		return GetDocsResponse{}, invalid(GetDocsByID, "'ids' must be a non-empty list of strings")
	}
	for _, id := range req.IDs {
		if strings.TrimSpace(id) == "" {
			return GetDocsResponse{}, invalid(GetDocsByID, "each id in 'ids' must be a non-empty string")
		}
	}
	if req.Return == "" {
		req.Return = string(docstore.ModeChunk)
	}
	mode, err := docstore.ParseMode(req.Return)
	if err != nil {
		return GetDocsResponse{}, invalid(GetDocsByID, "'return' must be one of chunk, parent, both")
	}
	if r.services.Docs == nil {
		return GetDocsResponse{}, core.NewError(core.CodeDocsNotConfigured, GetDocsByID, "no document store registered")
	}
	docs := r.services.Docs.Resolve(req.IDs, mode)
	if docs == nil {
		docs = []core.Doc{}
	}
	return GetDocsResponse{Docs: docs}, nil
}

func (r *Router) summarize(ctx context.Context, payload map[string]any) (map[string]any, error) {
	req := SummarizeRequest{Style: r.opts.Defaults.Style, TokenBudget: r.opts.Defaults.TokenBudget}
	if err := decode(ContextSummarize, payload, retrievalTools[ContextSummarize].Parameters, &req); err != nil {
		return nil, err
	}
	resp, err := r.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	return flatten(resp)
}

// Summarize runs a typed context_summarize request.
func (r *Router) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error) {
	if req.Style == "" {
		req.Style = summarize.StyleBullet
	}
	if err := summarize.CheckStyle(req.Style); err != nil {
		return SummarizeResponse{}, err
	}
	if req.TokenBudget < 0 {
		return SummarizeResponse{}, invalid(ContextSummarize, "'token_budget' must be >= 0")
	}
	res, err := r.services.Summarizer.Summarize(ctx, req.Hits, req.Style, req.TokenBudget)
	if err != nil {
		return SummarizeResponse{}, err
	}
	if res.Citations == nil {
		res.Citations = []core.Citation{}
	}
	return res, nil
}
