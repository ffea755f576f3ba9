package ragmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
	"github.com/hupe1980/ragmesh/docstore/sqlite"
	"github.com/hupe1980/ragmesh/gate"
	"github.com/hupe1980/ragmesh/ingest"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/manifest"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/search"
	"github.com/hupe1980/ragmesh/summarize"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/tracing"
	"github.com/hupe1980/ragmesh/vectorindex"
)

// Runtime holds the query-time components built from a Config.
type Runtime struct {
	Config     *config.Config
	Logger     logging.Logger
	Tracer     tracing.Tracer
	Chunks     []core.Chunk
	Docs       *docstore.Store
	Searcher   search.Searcher
	Summarizer summarize.Summarizer
	// Model is nil when no provider is configured; Loop then fails.
	Model  model.Model
	Router *tool.Router
	Gate   *gate.Gate
	// Session is charged by domain tool calls made outside a run or request
	// context; WithSession gives each run its own.
	Session *gate.Session

	closers []io.Closer
}

// Open assembles a Runtime from cfg and the artifacts Build produced.
func Open(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Runtime, error) {
	opts := newOptions(optFns)
	rt := &Runtime{Config: cfg, Logger: opts.Logger, Tracer: opts.Tracer}

	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context) error {
	cfg := rt.Config

	chunks, docs, err := loadDocs(ctx, cfg.Docs)
	if err != nil {
		return err
	}
	rt.Chunks, rt.Docs = chunks, docs

	if rt.Searcher, err = rt.newSearcher(); err != nil {
		return err
	}
	if rt.Model, err = NewModel(cfg.Model); err != nil {
		return err
	}
	if rt.Summarizer, err = NewSummarizer(cfg.Summarizer, rt.Model, rt.Logger); err != nil {
		return err
	}

	services := tool.Services{Search: rt.Searcher, Summarizer: rt.Summarizer}
	if rt.Docs != nil {
		services.Docs = rt.Docs
	}
	rt.Router = tool.NewRouter(services, func(o *tool.RouterOptions) {
		o.Defaults = tool.Defaults{
			K:                cfg.Search.DefaultK,
			SectionHardLimit: cfg.Search.SectionHardLimit,
			Style:            cfg.Summarizer.Style,
			TokenBudget:      cfg.Summarizer.TokenBudget,
		}
		o.Logger = rt.Logger
	})

	var rules []gate.Rule
	if cfg.Gate.RulesFile != "" {
		if rules, err = gate.LoadRules(cfg.Gate.RulesFile); err != nil {
			return err
		}
	}
	rt.Gate = gate.New(rules, func(o *gate.Options) {
		o.SampleLimit = cfg.Gate.SampleLimit
		o.Tracer = rt.Tracer
		o.Logger = rt.Logger
	})
	rt.Session = gate.NewSession(cfg.Gate.BudgetLimit)
	for _, dt := range rt.Gate.DomainTools(rt.Session) {
		if err := rt.Router.RegisterDomain(dt); err != nil {
			return err
		}
	}

	rt.Logger.Info("runtime.open",
		"chunks", len(rt.Chunks),
		"search", cfg.Search.Mode,
		"summarizer", cfg.Summarizer.Kind,
		"model", cfg.Model.Provider,
		"rules", len(rules))
	return nil
}

func loadDocs(ctx context.Context, cfg config.Docs) ([]core.Chunk, *docstore.Store, error) {
	switch {
	case cfg.SQLite != "":
		repo, err := sqlite.Open(cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		defer repo.Close()
		chunks, err := repo.Chunks(ctx)
		if err != nil {
			return nil, nil, err
		}
		parents, err := repo.Parents(ctx)
		if err != nil {
			return nil, nil, err
		}
		return chunks, docstore.New(chunks, parents...), nil
	case cfg.JSONL != "":
		chunks, err := ingest.ReadJSONL(cfg.JSONL)
		if err != nil {
			return nil, nil, fmt.Errorf("loading docs: %w", err)
		}
		return chunks, docstore.New(chunks), nil
	default:
		return nil, nil, nil
	}
}

func (rt *Runtime) newSearcher() (search.Searcher, error) {
	cfg := rt.Config
	switch cfg.Search.Mode {
	case "keyword":
		return search.NewKeyword(rt.Chunks), nil
	case "bleve":
		b, err := search.NewBleve(rt.Chunks)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, b)
		return b, nil
	case "vector", "":
		backend, err := NewBackend(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		idx, err := vectorindex.Load(cfg.Index.Dir, cfg.Index.Impl)
		if err != nil {
			return nil, err
		}
		if err := manifest.VerifyContent(cfg.Index.Dir, filepath.Join(cfg.Index.Dir, vectorindex.VectorsFile)); err != nil {
			return nil, err
		}
		return search.NewVector(backend, idx, func(o *search.VectorOptions) {
			o.ManifestDir = cfg.Index.Dir
			o.Distance = cfg.Index.Distance
			if rt.Docs != nil {
				o.Texts = rt.Docs
			}
			o.Logger = rt.Logger
		}), nil
	default:
		return nil, fmt.Errorf("ragmesh: unknown search mode %q", cfg.Search.Mode)
	}
}

// WithSession returns ctx carrying a fresh gate session with the configured
// budget, unless ctx already carries one.
func (rt *Runtime) WithSession(ctx context.Context) context.Context {
	if _, ok := gate.SessionFrom(ctx); ok {
		return ctx
	}
	return gate.WithSession(ctx, gate.NewSession(rt.Config.Gate.BudgetLimit))
}

// Loop creates a control loop over the runtime's router and model. Every run
// gets its own decision budget.
func (rt *Runtime) Loop(optFns ...func(o *agent.LoopOptions)) (*agent.Loop, error) {
	if rt.Model == nil {
		return nil, errors.New("ragmesh: no model provider configured")
	}
	fns := append([]func(o *agent.LoopOptions){func(o *agent.LoopOptions) {
		o.MaxSteps = rt.Config.Agent.MaxSteps
		o.SourcesFooter = rt.Config.Agent.SourcesFooter
		o.RunContext = rt.WithSession
		o.Logger = rt.Logger
		o.Tracer = rt.Tracer
	}}, optFns...)
	return agent.NewLoop(rt.Router, rt.Model, fns...), nil
}

// Close releases searcher resources.
func (rt *Runtime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c.Close())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
