// Package api serves the tool router and the control loop over HTTP.
//
//	GET  /healthz            liveness
//	GET  /v1/tools           registered tools with their parameter schemas
//	POST /v1/tools/{name}    dispatch one tool call; body is the payload
//	POST /v1/ask             run the control loop for {"question", "profile"}
//
// Errors are returned as {"error": {"code", "message"}} with a status derived
// from the error code.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/logging"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 4 << 20

// Asker runs the control loop. *agent.Loop implements it.
type Asker interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// Options configure a Server.
type Options struct {
	// APIKey enables bearer authentication on /v1 routes when set.
	APIKey       string
	MaxBodyBytes int64
	// RequestContext derives the context of every /v1 request.
	RequestContext func(ctx context.Context) context.Context
	Logger         logging.Logger
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	tools  agent.Dispatcher
	asker  Asker
	opts   Options
}

// NewServer creates and configures the HTTP server. asker may be nil, in
// which case /v1/ask answers 503.
func NewServer(tools agent.Dispatcher, asker Asker, optFns ...func(o *Options)) *Server {
	opts := Options{MaxBodyBytes: DefaultMaxBodyBytes}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{tools: tools, asker: asker, opts: opts}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.opts.Logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.opts.APIKey != "" {
			r.Use(AuthMiddleware(s.opts.APIKey))
		}
		r.Use(middleware.RequestSize(s.opts.MaxBodyBytes))
		if s.opts.RequestContext != nil {
			r.Use(ContextMiddleware(s.opts.RequestContext))
		}

		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleDispatch)
		r.Post("/ask", s.handleAsk)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
