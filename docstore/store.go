// Package docstore resolves chunk ids to chunk text and to parent documents.
//
// Parents come from explicit parent records when supplied. Otherwise one
// parent per document is synthesized from a bounded prefix of each child
// chunk. Unknown ids are skipped without error so partial corpora degrade
// gracefully.
package docstore

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ragmesh/core"
)

// Mode selects what Resolve returns for each id.
type Mode string

const (
	// ModeChunk returns the chunk itself (or the parent when given a parent id).
	ModeChunk Mode = "chunk"
	// ModeParent returns the distinct parents of the ids.
	ModeParent Mode = "parent"
	// ModeBoth returns each chunk immediately followed by its parent.
	ModeBoth Mode = "both"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeChunk, ModeParent, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("return must be one of chunk, parent, both; got %q", s)
	}
}

const (
	// ChildPrefixRunes bounds each child's contribution to a synthesized parent.
	ChildPrefixRunes = 128
	// ParentCapRunes bounds a synthesized parent's text.
	ParentCapRunes = 512
)

// Resolver is the document resolution contract used by the tool router.
type Resolver interface {
	Resolve(ids []string, mode Mode) []core.Doc
}

// Store is an immutable in-memory Resolver.
type Store struct {
	chunks   map[string]core.Doc
	parents  map[string]core.Doc
	parentOf map[string]string
}

var _ Resolver = (*Store)(nil)

// New builds a store from chunks and optional explicit parent records.
// Parents missing from the explicit set are synthesized from their children
// in chunk order.
func New(chunks []core.Chunk, parents ...core.Doc) *Store {
	s := &Store{
		chunks:   make(map[string]core.Doc, len(chunks)),
		parents:  make(map[string]core.Doc, len(parents)),
		parentOf: make(map[string]string, len(chunks)),
	}
	for _, p := range parents {
		s.parents[p.ID] = core.Doc{ID: p.ID, Text: p.Text, Meta: core.CloneMeta(p.Meta)}
	}

	children := map[string][]core.Chunk{}
	var order []string
	for _, c := range chunks {
		s.chunks[c.ChunkID] = ChunkDoc(c)
		pid := parentID(c)
		s.parentOf[c.ChunkID] = pid
		if _, explicit := s.parents[pid]; explicit {
			continue
		}
		if _, ok := children[pid]; !ok {
			order = append(order, pid)
		}
		children[pid] = append(children[pid], c)
	}
	for _, pid := range order {
		s.parents[pid] = synthesizeParent(pid, children[pid])
	}
	return s
}

func parentID(c core.Chunk) string {
	switch {
	case c.ParentID != "":
		return c.ParentID
	case c.DocID != "":
		return c.DocID
	default:
		return core.ParentOf(c.ChunkID)
	}
}

// ChunkDoc converts a chunk to its resolved Doc form. Meta holds the
// document's front matter plus the chunk's own placement fields.
func ChunkDoc(c core.Chunk) core.Doc {
	meta := core.CloneMeta(c.Meta)
	meta["doc_id"] = c.DocID
	meta["chunk_id"] = c.ChunkID
	meta["section"] = c.Section
	if _, ok := meta["title"]; !ok && c.Title != "" {
		meta["title"] = c.Title
	}
	if c.Source != "" {
		meta["source"] = c.Source
	}
	return core.Doc{ID: c.ChunkID, Text: c.Text, Meta: meta}
}

func synthesizeParent(id string, children []core.Chunk) core.Doc {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = truncateRunes(c.Text, ChildPrefixRunes)
	}
	meta := core.CloneMeta(children[0].Meta)
	if _, ok := meta["title"]; !ok && children[0].Title != "" {
		meta["title"] = children[0].Title
	}
	meta["doc_id"] = id
	return core.Doc{
		ID:   id,
		Text: truncateRunes(strings.Join(parts, " "), ParentCapRunes),
		Meta: meta,
	}
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

// parentFor returns the parent id of a chunk id, the id itself for parent
// ids, or the '#' prefix when that names a known parent.
func (s *Store) parentFor(id string) (string, bool) {
	if pid, ok := s.parentOf[id]; ok {
		_, known := s.parents[pid]
		return pid, known
	}
	if _, ok := s.parents[id]; ok {
		return id, true
	}
	pid := core.ParentOf(id)
	_, ok := s.parents[pid]
	return pid, ok
}

// Resolve implements Resolver. Output never repeats an id and preserves
// first-seen input order.
func (s *Store) Resolve(ids []string, mode Mode) []core.Doc {
	out := []core.Doc{}
	seen := map[string]bool{}
	emit := func(d core.Doc) {
		if seen[d.ID] {
			return
		}
		seen[d.ID] = true
		out = append(out, d)
	}

	for _, id := range ids {
		switch mode {
		case ModeChunk:
			if c, ok := s.chunks[id]; ok {
				emit(c)
			} else if p, ok := s.parents[id]; ok {
				emit(p)
			}
		case ModeParent:
			if pid, ok := s.parentFor(id); ok {
				emit(s.parents[pid])
			}
		case ModeBoth:
			if c, ok := s.chunks[id]; ok {
				emit(c)
			}
			if pid, ok := s.parentFor(id); ok {
				emit(s.parents[pid])
			}
		}
	}
	return out
}

// Text returns the text of a chunk or parent id.
func (s *Store) Text(id string) (string, bool) {
	if c, ok := s.chunks[id]; ok {
		return c.Text, true
	}
	if p, ok := s.parents[id]; ok {
		return p.Text, true
	}
	return "", false
}

// Len returns the number of chunks and parents held.
func (s *Store) Len() (chunks, parents int) {
	return len(s.chunks), len(s.parents)
}
