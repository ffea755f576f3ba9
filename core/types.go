package core

import "strings"

// Chunk is one heading-delimited section of an ingested document.
//
// ChunkID is DocID + "#" + the positional index of the section. Chunks are
// immutable once written; re-ingesting identical content yields identical ids.
type Chunk struct {
	DocID     string         `json:"doc_id"`
	ChunkID   string         `json:"chunk_id"`
	Text      string         `json:"text"`
	Section   string         `json:"section"`
	Tags      []string       `json:"tags"`
	Source    string         `json:"source,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Title     string         `json:"title,omitempty"`
	Meta      map[string]any `json:"meta"`
	// ParentID links the chunk to an explicit parent record. Empty means the
	// parent is derived from the id prefix.
	ParentID string `json:"parent_id,omitempty"`
}

// SearchHit is a single ranked retrieval result.
type SearchHit struct {
	ID    string         `json:"id"`
	Text  string         `json:"text"`
	Score float64        `json:"score"`
	Meta  map[string]any `json:"meta"`
}

// Doc is a resolved chunk or parent document.
type Doc struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta"`
}

// Citation references an id inside a summary. Offset holds byte positions so
// that summary[Offset[0]:Offset[1]] == ID.
type Citation struct {
	ID     string `json:"id"`
	Offset [2]int `json:"offset"`
}

// Valid reports whether the citation slices exactly its id out of text.
func (c Citation) Valid(text string) bool {
	start, end := c.Offset[0], c.Offset[1]
	if start < 0 || end > len(text) || start >= end {
		return false
	}
	return text[start:end] == c.ID
}

// ParentOf returns the parent id of a chunk id: the text before the first '#'.
// Ids without '#' are their own parent.
func ParentOf(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		return id[:i]
	}
	return id
}

// CloneMeta returns a shallow copy of m, never nil.
func CloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
