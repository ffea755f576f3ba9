// Package mcpserver exposes the retrieval tools over the Model Context
// Protocol so that external assistants can search, resolve and summarize the
// knowledge base directly.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/tool"
)

// ErrMissingRetrieval is returned when no retrieval service is provided.
var ErrMissingRetrieval = errors.New("mcpserver: retrieval service is required")

// Retrieval is the typed retrieval surface. *tool.Router implements it.
type Retrieval interface {
	Search(ctx context.Context, req tool.VectorSearchRequest) (tool.VectorSearchResponse, error)
	Docs(req tool.GetDocsRequest) (tool.GetDocsResponse, error)
	Summarize(ctx context.Context, req tool.SummarizeRequest) (tool.SummarizeResponse, error)
}

// Options configure a Server.
type Options struct {
	Name    string
	Version string
	// Defaults fill omitted section_hard_limit, style and token_budget.
	Defaults tool.Defaults
	Logger   logging.Logger
}

// Server is the MCP server.
type Server struct {
	retrieval Retrieval
	server    *mcp.Server
	opts      Options
}

// NewServer creates an MCP server over retrieval.
func NewServer(retrieval Retrieval, optFns ...func(o *Options)) (*Server, error) {
	if retrieval == nil {
		return nil, ErrMissingRetrieval
	}
	opts := Options{Name: "ragmesh", Version: "dev", Defaults: tool.DefaultDefaults()}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{
		retrieval: retrieval,
		server:    mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		opts:      opts,
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.server }

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns a streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	s.opts.Logger.Info("mcp.listen", "addr", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
