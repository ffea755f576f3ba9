// Package tool dispatches named tool calls from the control loop, the HTTP
// API and the MCP server.
//
// Two registries sit behind one Router:
//
//   - Retrieval tools (vector_search, get_docs_by_id, context_summarize) have
//     typed request/response contracts. Payloads are validated against the
//     tool's parameter schema, decoded into the typed request, executed
//     against the configured Services, and flattened back into a generic map.
//   - Domain tools are registered at startup with an allowed-argument set.
//     They receive the active subject (the "profile" payload entry or the
//     one attached to the context) and their results are normalized into a
//     map with at least a "data" field.
//
// All failures are *core.Error values carrying INVALID_ARG, UNKNOWN_TOOL,
// INDEX_NOT_CONFIGURED, DOCS_NOT_CONFIGURED or MISSING_PROFILE.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
	"github.com/hupe1980/ragmesh/internal/util"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/search"
	"github.com/hupe1980/ragmesh/summarize"
)

// Retrieval tool names.
const (
	VectorSearch     = "vector_search"
	GetDocsByID      = "get_docs_by_id"
	ContextSummarize = "context_summarize"
)

// Tool kinds reported by Tools.
const (
	KindRetrieval = "retrieval"
	KindDomain    = "domain"
)

// Info describes a registered tool.
type Info struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Services are the retrieval backends. Nil members make their tools fail
// with INDEX_NOT_CONFIGURED or DOCS_NOT_CONFIGURED. The summarizer defaults
// to summarize.Fallback.
type Services struct {
	Search     search.Searcher
	Docs       docstore.Resolver
	Summarizer summarize.Summarizer
}

// Defaults apply to retrieval payloads that omit optional fields.
type Defaults struct {
	K                int
	SectionHardLimit int
	Style            string
	TokenBudget      int
}

// DefaultDefaults returns the stock request defaults.
func DefaultDefaults() Defaults {
	return Defaults{K: 8, SectionHardLimit: 2048, Style: summarize.StyleBullet, TokenBudget: 1200}
}

// RouterOptions configure a Router.
type RouterOptions struct {
	Defaults Defaults
	Logger   logging.Logger
}

// Router dispatches tool calls. Registration happens during startup; Dispatch
// is safe for concurrent use afterwards.
type Router struct {
	services Services
	opts     RouterOptions

	mu     sync.RWMutex
	domain map[string]DomainTool
}

// NewRouter creates a router over services.
func NewRouter(services Services, optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{Defaults: DefaultDefaults()}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if services.Summarizer == nil {
		services.Summarizer = summarize.Fallback{}
	}
	return &Router{services: services, opts: opts, domain: map[string]DomainTool{}}
}

// Dispatch executes the named tool with a generic keyed payload and returns
// a generic keyed result.
func (r *Router) Dispatch(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	start := time.Now()
	if payload == nil {
		payload = map[string]any{}
	}

	var (
		out map[string]any
		err error
	)
	switch name {
	case VectorSearch:
		out, err = r.vectorSearch(ctx, payload)
	case GetDocsByID:
		out, err = r.getDocs(payload)
	case ContextSummarize:
		out, err = r.summarize(ctx, payload)
	default:
		r.mu.RLock()
		dt, ok := r.domain[name]
		r.mu.RUnlock()
		if !ok {
			err = core.NewError(core.CodeUnknownTool, name, "%q has no implementation", name)
			break
		}
		out, err = r.callDomain(ctx, dt, payload)
	}

	logging.LogToolCall(r.opts.Logger, name, time.Since(start), err)
	return out, err
}

// Tools lists retrieval tools followed by domain tools, each group sorted by name.
func (r *Router) Tools() []Info {
	out := make([]Info, 0, len(retrievalTools)+len(r.domain))
	for _, name := range []string{ContextSummarize, GetDocsByID, VectorSearch} {
		out = append(out, retrievalTools[name])
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.domain))
	for name := range r.domain {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, r.domain[name].info())
	}
	return out
}

// Schema returns the parameter schema of a tool.
func (r *Router) Schema(name string) (map[string]any, bool) {
	if info, ok := retrievalTools[name]; ok {
		return info.Parameters, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dt, ok := r.domain[name]; ok {
		return dt.info().Parameters, true
	}
	return nil, false
}

// decode validates payload against schema and decodes it onto req, which
// must already hold the defaults.
func decode(name string, payload map[string]any, schema map[string]any, req any) error {
	if err := util.ValidateParameters(payload, schema); err != nil {
		return &core.Error{Code: core.CodeInvalidArg, Source: name, Message: err.Error(), Details: err, Err: err}
	}
	// Explicit nulls keep their defaults.
	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if v != nil {
			clean[k] = v
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return core.WrapError(core.CodeInvalidArg, name, err)
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return core.WrapError(core.CodeInvalidArg, name, err)
	}
	return nil
}

// flatten converts a typed response into a generic keyed structure.
func flatten(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tool: encode response: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tool: flatten response: %w", err)
	}
	return out, nil
}
