// Package search answers retrieval queries over the chunk corpus.
//
// Three Searchers share one request/response contract:
//
//   - Vector: embeds the query and ranks the vector index. When bound to a
//     persisted index directory it checks the manifest before every query.
//   - Keyword: deterministic token-overlap scoring over chunk text.
//   - Bleve: full-text ranking over an in-memory bleve index.
//
// All of them order hits by score descending, then id ascending, apply
// metadata equality filters and truncate hit text to SectionHardLimit runes.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/ragmesh/core"
)

// Rerankers accepted in requests.
const (
	RerankerNone         = "none"
	RerankerCrossEncoder = "cross_encoder"
	RerankerLLM          = "LLM"
)

// Request is a retrieval query.
type Request struct {
	Query   string
	K       int
	Filters map[string]string
	// Reranker names an optional second-stage ranker. Only "none" is
	// executed; other values are logged and skipped.
	Reranker string
	// SectionHardLimit truncates each hit's text; 0 disables truncation.
	SectionHardLimit int
}

// Searcher is the retrieval contract used by the tool router.
type Searcher interface {
	Search(ctx context.Context, req Request) ([]core.SearchHit, error)
}

// TextLookup resolves an id to its text.
type TextLookup interface {
	Text(id string) (string, bool)
}

// SortHits orders hits by score descending, then id ascending.
func SortHits(hits []core.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// MatchesFilters reports whether every filter key equals the stringified meta value.
func MatchesFilters(meta map[string]any, filters map[string]string) bool {
	for k, v := range filters {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != v {
			return false
		}
	}
	return true
}

// finalize filters, orders, truncates to k and applies the text limit.
func finalize(hits []core.SearchHit, req Request) []core.SearchHit {
	out := make([]core.SearchHit, 0, len(hits))
	for _, h := range hits {
		if MatchesFilters(h.Meta, req.Filters) {
			out = append(out, h)
		}
	}
	SortHits(out)
	if req.K >= 0 && len(out) > req.K {
		out = out[:req.K]
	}
	if req.SectionHardLimit > 0 {
		for i := range out {
			out[i].Text = truncateRunes(out[i].Text, req.SectionHardLimit)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
