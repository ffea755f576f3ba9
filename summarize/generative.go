package summarize

import (
	"context"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
)

// GenerativeOptions configure a Generative summarizer.
type GenerativeOptions struct {
	// Fallback answers when the model fails. Nil propagates model errors.
	Fallback Summarizer
	Logger   logging.Logger
}

// Generative summarizes with a model.
type Generative struct {
	model model.Model
	opts  GenerativeOptions
}

var _ Summarizer = (*Generative)(nil)

// NewGenerative creates a model-backed summarizer.
func NewGenerative(m model.Model, optFns ...func(o *GenerativeOptions)) *Generative {
	var opts GenerativeOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Generative{model: m, opts: opts}
}

// Summarize implements Summarizer.
func (g *Generative) Summarize(ctx context.Context, hits []core.SearchHit, style string, tokenBudget int) (Result, error) {
	if err := CheckStyle(style); err != nil {
		return Result{}, err
	}
	if err := checkBudget(tokenBudget); err != nil {
		return Result{}, err
	}
	if len(hits) == 0 || tokenBudget == 0 {
		return Result{Citations: []core.Citation{}}, nil
	}

	start := time.Now()
	raw, err := model.Complete(ctx, g.model, BuildPrompt(style, hits, tokenBudget))
	if err != nil {
		g.opts.Logger.Warn("summarizer model call failed", "model", g.model.Info().Name, "duration", time.Since(start), "error", err)
		if g.opts.Fallback != nil {
			return g.opts.Fallback.Summarize(ctx, hits, style, tokenBudget)
		}
		return Result{}, wrapf("model call: %w", err)
	}

	summary := truncateRunes(RewriteMarkers(raw), CharBudget(tokenBudget))
	return Result{Summary: summary, Citations: ValidateCitations(summary, ExtractCitations(summary))}, nil
}
