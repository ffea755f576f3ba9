package testutil

import "github.com/hupe1980/ragmesh/core"

// Hit returns a search hit with empty meta.
func Hit(id, text string, score float64) core.SearchHit {
	return core.SearchHit{ID: id, Text: text, Score: score, Meta: map[string]any{}}
}

// Hits converts chunks to hits with descending scores starting at 1.
func Hits(chunks ...core.Chunk) []core.SearchHit {
	out := make([]core.SearchHit, len(chunks))
	for i, c := range chunks {
		out[i] = core.SearchHit{
			ID:    c.ChunkID,
			Text:  c.Text,
			Score: 1 - float64(i)*0.1,
			Meta:  map[string]any{"section": c.Section, "doc_id": c.DocID},
		}
	}
	return out
}
