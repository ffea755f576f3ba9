package testutil

import (
	"strconv"

	"github.com/hupe1980/ragmesh/core"
)

// ChunkBuilder provides a fluent helper for constructing chunks in tests.
// Example:
//
//	c := NewChunkBuilder("guide", 0).Section("intro").Text("hello").Tags("a").Build()
//
// Chain only the fields you need; the chunk id is derived from doc id and index.
type ChunkBuilder struct {
	c core.Chunk
}

// NewChunkBuilder creates a builder for chunk docID#index.
func NewChunkBuilder(docID string, index int) *ChunkBuilder {
	return &ChunkBuilder{c: core.Chunk{
		DocID:   docID,
		ChunkID: docID + "#" + strconv.Itoa(index),
		Tags:    []string{},
		Meta:    map[string]any{},
	}}
}

// Text sets the chunk body (chainable).
func (b *ChunkBuilder) Text(t string) *ChunkBuilder { b.c.Text = t; return b }

// Section sets the section slug (chainable).
func (b *ChunkBuilder) Section(s string) *ChunkBuilder { b.c.Section = s; return b }

// Title sets the document title (chainable).
func (b *ChunkBuilder) Title(t string) *ChunkBuilder { b.c.Title = t; return b }

// Source sets the source path (chainable).
func (b *ChunkBuilder) Source(s string) *ChunkBuilder { b.c.Source = s; return b }

// Tags appends tags (chainable).
func (b *ChunkBuilder) Tags(tags ...string) *ChunkBuilder {
	b.c.Tags = append(b.c.Tags, tags...)
	return b
}

// Meta sets a meta entry (chainable).
func (b *ChunkBuilder) Meta(key string, val any) *ChunkBuilder { b.c.Meta[key] = val; return b }

// Parent sets an explicit parent id (chainable).
func (b *ChunkBuilder) Parent(id string) *ChunkBuilder { b.c.ParentID = id; return b }

// Build returns the chunk.
func (b *ChunkBuilder) Build() core.Chunk {
	c := b.c
	c.Tags = append([]string(nil), b.c.Tags...)
	c.Meta = core.CloneMeta(b.c.Meta)
	return c
}

// Corpus returns a small fixed knowledge base of two documents, three chunks.
//
//	jank#0   (section "frame-drops")  jank, frame, render
//	jank#1   (section "long-tasks")   long task, main thread
//	net#0    (section "requests")     network request, latency
func Corpus() []core.Chunk {
	return []core.Chunk{
		NewChunkBuilder("jank", 0).Title("Jank").Section("frame-drops").
			Text("Jank shows up as dropped frames when render work exceeds the frame budget.").
			Meta("title", "Jank").Build(),
		NewChunkBuilder("jank", 1).Title("Jank").Section("long-tasks").
			Text("Long tasks on the main thread delay input handling and frame production.").
			Meta("title", "Jank").Build(),
		NewChunkBuilder("net", 0).Title("Network").Section("requests").
			Text("Slow network request latency can block page load.").
			Meta("title", "Network").Build(),
	}
}
