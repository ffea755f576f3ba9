// Package ragmesh wires the retrieval, summarization and control-loop
// components into a runnable system. Most applications interact with this
// package by:
//  1. Loading a config.Config (config.Load)
//  2. Building the index artifact once (Build)
//  3. Opening a Runtime over the artifact (Open) and using its Router, Loop
//     and Gate, or serving them through the api and mcpserver packages
//
// The Runtime is an explicit dependency object: it is assembled once at
// startup and read-only afterwards. Nothing in the module relies on global
// registries.
package ragmesh

import (
	"fmt"
	"runtime/debug"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/embedding"
	embopenai "github.com/hupe1980/ragmesh/embedding/openai"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/model/anthropic"
	"github.com/hupe1980/ragmesh/model/openai"
	"github.com/hupe1980/ragmesh/summarize"
	"github.com/hupe1980/ragmesh/tracing"
)

// Version is the module build version recorded in manifests. It is set at
// link time with -ldflags "-X github.com/hupe1980/ragmesh.Version=...".
var Version = "dev"

// Options carry the ambient collaborators shared by Build and Open.
type Options struct {
	Logger logging.Logger
	Tracer tracing.Tracer
}

func newOptions(optFns []func(o *Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	opts.Tracer = tracing.OrNoOp(opts.Tracer)
	return opts
}

// NewLogger creates the process logger described by cfg.
func NewLogger(cfg config.Log) *logging.RAGLogger {
	return logging.NewSlogLogger(logging.ParseLevel(cfg.Level), cfg.Format, false)
}

// NewBackend creates the embedding backend named by cfg.
func NewBackend(cfg config.Embedding) (embedding.Backend, error) {
	switch cfg.Backend {
	case "bow", "":
		return embedding.NewBagOfWords(cfg.Dim, cfg.Normalize), nil
	case "hash":
		return embedding.NewHash(cfg.Dim, cfg.Seed, cfg.Normalize), nil
	case "openai":
		return embopenai.NewBackend(func(o *embopenai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Dimensions = cfg.Dim
			o.Normalize = cfg.Normalize
		}), nil
	default:
		return nil, fmt.Errorf("ragmesh: unknown embedding backend %q", cfg.Backend)
	}
}

// NewModel creates the reasoning backend named by cfg. An empty provider
// yields a nil model. Rate limiting applies when requests_per_minute is set.
func NewModel(cfg config.Model) (model.Model, error) {
	var m model.Model
	switch cfg.Provider {
	case "":
		return nil, nil
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
		})
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		})
	default:
		return nil, fmt.Errorf("ragmesh: unknown model provider %q", cfg.Provider)
	}
	return model.WithRateLimit(m, cfg.RequestsPerMinute, 1), nil
}

// NewSummarizer creates the summarizer named by cfg. The generative
// summarizer falls back to the extractive one when the model fails.
func NewSummarizer(cfg config.Summarizer, m model.Model, logger logging.Logger) (summarize.Summarizer, error) {
	switch cfg.Kind {
	case "fallback", "":
		return summarize.Fallback{}, nil
	case "generative":
		if m == nil {
			return nil, fmt.Errorf("ragmesh: generative summarizer needs a model")
		}
		return summarize.NewGenerative(m, func(o *summarize.GenerativeOptions) {
			o.Fallback = summarize.Fallback{}
			o.Logger = logger
		}), nil
	default:
		return nil, fmt.Errorf("ragmesh: unknown summarizer %q", cfg.Kind)
	}
}

// libVersions reports the versions of the libraries that shape index
// contents, as far as build info is available.
func libVersions() map[string]string {
	out := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out["go"] = info.GoVersion
	for _, dep := range info.Deps {
		switch dep.Path {
		case "github.com/viant/vec", "github.com/openai/openai-go", "github.com/yuin/goldmark":
			out[dep.Path] = dep.Version
		}
	}
	return out
}
