package docstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
)

func docIDs(docs []core.Doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func fixture() *Store {
	chunks := []core.Chunk{
		{DocID: "doc:media", ChunkID: "doc:media#0-10", Text: "media pipeline stalls", ParentID: "doc:media"},
		{DocID: "doc:media", ChunkID: "doc:media#11-20", Text: "decoder thread busy", ParentID: "doc:media"},
		{DocID: "doc:gc", ChunkID: "doc:gc#0", Text: strings.Repeat("g", 200), Meta: map[string]any{"title": "GC"}},
		{DocID: "doc:gc", ChunkID: "doc:gc#1", Text: strings.Repeat("h", 200)},
		{DocID: "standalone", ChunkID: "standalone", Text: "no hash in id"},
	}
	parents := []core.Doc{
		{ID: "doc:media", Text: "Media playback document", Meta: map[string]any{"title": "Media"}},
		{ID: "doc:render-thread", Text: "Render thread document", Meta: map[string]any{"title": "Render"}},
	}
	return New(chunks, parents...)
}

// ---- Mode Tests ----

func TestResolve_ParentFromChunkID(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:media#0-10"}, ModeParent)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc:media", docs[0].ID)
	assert.Equal(t, "Media", docs[0].Meta["title"])
}

func TestResolve_BothOrdersChunkThenParent(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:media#0-10", "doc:media#11-20", "doc:media#0-10"}, ModeBoth)
	assert.Equal(t, []string{"doc:media#0-10", "doc:media", "doc:media#11-20"}, docIDs(docs))
}

func TestResolve_ChunkModeAcceptsParentIDs(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:render-thread", "doc:media#11-20"}, ModeChunk)
	assert.Equal(t, []string{"doc:render-thread", "doc:media#11-20"}, docIDs(docs))
	assert.Equal(t, "decoder thread busy", docs[1].Text)
	assert.Equal(t, "doc:media", docs[1].Meta["doc_id"])
}

func TestResolve_ParentDedupPreservesOrder(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:gc#1", "doc:media#0-10", "doc:gc#0", "doc:render-thread"}, ModeParent)
	assert.Equal(t, []string{"doc:gc", "doc:media", "doc:render-thread"}, docIDs(docs))
}

func TestResolve_UnknownIDsOmitted(t *testing.T) {
	s := fixture()
	assert.Empty(t, s.Resolve([]string{"nope", "doc:missing#1"}, ModeBoth))
	assert.Empty(t, s.Resolve([]string{"nope"}, ModeChunk))
	assert.NotNil(t, s.Resolve(nil, ModeParent))
}

func TestResolve_UnknownChunkOfKnownParent(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:media#99"}, ModeParent)
	assert.Equal(t, []string{"doc:media"}, docIDs(docs))
}

func TestResolve_IDWithoutHashIsOwnParent(t *testing.T) {
	s := fixture()
	assert.Equal(t, []string{"standalone"}, docIDs(s.Resolve([]string{"standalone"}, ModeBoth)))
	assert.Equal(t, []string{"standalone"}, docIDs(s.Resolve([]string{"standalone"}, ModeParent)))
}

func TestResolve_BothNeverDuplicates(t *testing.T) {
	s := fixture()
	in := []string{"doc:gc#0", "doc:gc", "doc:gc#1", "doc:gc#0", "doc:media", "doc:media#0-10"}
	docs := s.Resolve(in, ModeBoth)

	seen := map[string]bool{}
	for _, d := range docs {
		assert.False(t, seen[d.ID], "duplicate %s", d.ID)
		seen[d.ID] = true
	}
	assert.Equal(t, []string{"doc:gc#0", "doc:gc", "doc:gc#1", "doc:media", "doc:media#0-10"}, docIDs(docs))
}

// ---- Synthesis Tests ----

func TestSynthesizedParent(t *testing.T) {
	docs := fixture().Resolve([]string{"doc:gc#1"}, ModeParent)
	require.Len(t, docs, 1)

	p := docs[0]
	assert.Equal(t, "doc:gc", p.ID)
	assert.Equal(t, strings.Repeat("g", 128)+" "+strings.Repeat("h", 128), p.Text)
	assert.Equal(t, "GC", p.Meta["title"])
}

func TestSynthesizedParent_Cap(t *testing.T) {
	var chunks []core.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, core.Chunk{DocID: "d", ChunkID: "d#" + string(rune('0'+i)), Text: strings.Repeat("é", 200)})
	}
	text, ok := New(chunks).Text("d")
	require.True(t, ok)
	assert.Equal(t, ParentCapRunes, len([]rune(text)))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("both")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)

	_, err = ParseMode("all")
	assert.Error(t, err)
}
