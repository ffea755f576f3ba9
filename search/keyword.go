package search

import (
	"context"
	"strings"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
	"github.com/hupe1980/ragmesh/embedding"
)

// Keyword scores each chunk +1 per query token present as a whole token and
// +0.1 per query token present only as a substring. Chunks scoring 0 are
// not returned.
type Keyword struct {
	docs []keywordDoc
}

type keywordDoc struct {
	doc    core.Doc
	lower  string
	tokens map[string]bool
}

var _ Searcher = (*Keyword)(nil)

// NewKeyword indexes chunks for keyword search.
func NewKeyword(chunks []core.Chunk) *Keyword {
	k := &Keyword{docs: make([]keywordDoc, 0, len(chunks))}
	for _, c := range chunks {
		if c.ChunkID == "" {
			continue
		}
		toks := map[string]bool{}
		for _, t := range embedding.Tokenize(c.Text) {
			toks[t] = true
		}
		k.docs = append(k.docs, keywordDoc{doc: docstore.ChunkDoc(c), lower: strings.ToLower(c.Text), tokens: toks})
	}
	return k
}

// Search implements Searcher.
func (k *Keyword) Search(ctx context.Context, req Request) ([]core.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := embedding.Tokenize(req.Query)
	var hits []core.SearchHit
	for _, d := range k.docs {
		var score float64
		for _, qt := range query {
			switch {
			case d.tokens[qt]:
				score += 1.0
			case strings.Contains(d.lower, qt):
				score += 0.1
			}
		}
		if score > 0 {
			hits = append(hits, core.SearchHit{ID: d.doc.ID, Text: d.doc.Text, Score: score, Meta: core.CloneMeta(d.doc.Meta)})
		}
	}
	return finalize(hits, req), nil
}
