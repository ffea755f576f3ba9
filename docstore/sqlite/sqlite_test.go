package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "data", "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	chunks := []core.Chunk{
		{DocID: "doc:b", ChunkID: "doc:b#0", Text: "bee", Section: "summary", Tags: []string{"x"}, Meta: map[string]any{"title": "B"}},
		{DocID: "doc:a", ChunkID: "doc:a#0", Text: "ay", Title: "A", Source: "kb/a.md"},
	}
	require.NoError(t, repo.SaveChunks(ctx, chunks))
	require.NoError(t, repo.SaveParents(ctx, []core.Doc{{ID: "doc:a", Text: "A full", Meta: map[string]any{"title": "A"}}}))

	got, err := repo.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc:b#0", got[0].ChunkID)
	assert.Equal(t, []string{"x"}, got[0].Tags)
	assert.Equal(t, "B", got[0].Meta["title"])
	assert.Equal(t, "kb/a.md", got[1].Source)
	assert.Empty(t, got[1].Tags)

	store, err := repo.LoadStore(ctx)
	require.NoError(t, err)
	docs := store.Resolve([]string{"doc:a#0", "doc:b#0"}, docstore.ModeParent)
	require.Len(t, docs, 2)
	assert.Equal(t, "A full", docs[0].Text)
	assert.Equal(t, "bee", docs[1].Text)
}

func TestRepository_UpsertKeepsPosition(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	require.NoError(t, repo.SaveChunks(ctx, []core.Chunk{
		{DocID: "d", ChunkID: "d#0", Text: "one"},
		{DocID: "d", ChunkID: "d#1", Text: "two"},
	}))
	require.NoError(t, repo.SaveChunks(ctx, []core.Chunk{{DocID: "d", ChunkID: "d#0", Text: "uno"}}))

	got, err := repo.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "uno", got[0].Text)
	assert.Equal(t, "d#1", got[1].ChunkID)
}
