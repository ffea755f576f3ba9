package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
)

// Bleve ranks chunks with a bleve full-text match query over an in-memory index.
type Bleve struct {
	index bleve.Index
	docs  map[string]core.Doc
}

var _ Searcher = (*Bleve)(nil)

type bleveDoc struct {
	Text    string `json:"text"`
	Section string `json:"section"`
	Title   string `json:"title"`
}

// NewBleve indexes chunks into a memory-only bleve index.
func NewBleve(chunks []core.Chunk) (*Bleve, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("search: create bleve index: %w", err)
	}
	b := &Bleve{index: idx, docs: make(map[string]core.Doc, len(chunks))}
	batch := idx.NewBatch()
	for _, c := range chunks {
		if c.ChunkID == "" {
			continue
		}
		if err := batch.Index(c.ChunkID, bleveDoc{Text: c.Text, Section: c.Section, Title: c.Title}); err != nil {
			return nil, fmt.Errorf("search: index %s: %w", c.ChunkID, err)
		}
		b.docs[c.ChunkID] = docstore.ChunkDoc(c)
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("search: commit bleve batch: %w", err)
	}
	return b, nil
}

// Search implements Searcher.
func (b *Bleve) Search(ctx context.Context, req Request) ([]core.SearchHit, error) {
	q := bleve.NewMatchQuery(req.Query)
	q.SetField("text")
	size := req.K
	if len(req.Filters) > 0 {
		size = len(b.docs)
	}
	if size <= 0 {
		return []core.SearchHit{}, nil
	}
	res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, size, 0, false))
	if err != nil {
		return nil, fmt.Errorf("search: bleve query: %w", err)
	}
	hits := make([]core.SearchHit, 0, len(res.Hits))
	for _, m := range res.Hits {
		d, ok := b.docs[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, core.SearchHit{ID: d.ID, Text: d.Text, Score: m.Score, Meta: core.CloneMeta(d.Meta)})
	}
	return finalize(hits, req), nil
}

// Close releases the bleve index.
func (b *Bleve) Close() error {
	return b.index.Close()
}
