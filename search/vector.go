package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/embedding"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/manifest"
	"github.com/hupe1980/ragmesh/vectorindex"
)

// VectorOptions configure a Vector searcher.
type VectorOptions struct {
	// ManifestDir enables the manifest compatibility check before every query.
	ManifestDir string
	// Distance recorded in the expected manifest settings.
	Distance string
	// Texts resolves hit ids to text when the index metadata carries none.
	Texts  TextLookup
	Logger logging.Logger
}

// Vector is the embedding-backed searcher.
type Vector struct {
	backend embedding.Backend
	index   vectorindex.Index
	opts    VectorOptions
}

var _ Searcher = (*Vector)(nil)

// NewVector creates a vector searcher over idx using backend to encode queries.
func NewVector(backend embedding.Backend, idx vectorindex.Index, optFns ...func(o *VectorOptions)) *Vector {
	opts := VectorOptions{Distance: vectorindex.DistanceCosine}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Vector{backend: backend, index: idx, opts: opts}
}

// Expected returns the settings a persisted index must have been built with.
func (v *Vector) Expected() manifest.Expected {
	return manifest.Expected{Embedder: v.backend.Identity(), Distance: v.opts.Distance, IndexImpl: v.index.Impl()}
}

// Search implements Searcher.
func (v *Vector) Search(ctx context.Context, req Request) ([]core.SearchHit, error) {
	start := time.Now()
	if v.opts.ManifestDir != "" {
		if err := manifest.AssertCompatible(v.opts.ManifestDir, v.Expected()); err != nil {
			return nil, err
		}
	}
	if req.Reranker != "" && req.Reranker != RerankerNone {
		v.opts.Logger.Warn("reranker not available, returning first-stage ranking", "reranker", req.Reranker)
	}
	q, err := embedding.EncodeOne(ctx, v.backend, req.Query)
	if err != nil {
		return nil, fmt.Errorf("search: encode query: %w", err)
	}
	// Over-fetch when filtering so that k results survive.
	fetch := req.K
	if len(req.Filters) > 0 {
		fetch = v.index.Len()
	}
	raw, err := v.index.Search(q, fetch)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]core.SearchHit, 0, len(raw))
	for _, h := range raw {
		meta := core.CloneMeta(h.Meta.Attrs)
		text, _ := meta["text"].(string)
		delete(meta, "text")
		if text == "" && v.opts.Texts != nil {
			text, _ = v.opts.Texts.Text(h.ID)
		}
		hits = append(hits, core.SearchHit{ID: h.ID, Text: text, Score: h.Score, Meta: meta})
	}
	out := finalize(hits, req)
	v.opts.Logger.Debug("vector search", "k", req.K, "hits", len(out), "duration", time.Since(start))
	return out, nil
}
