package ragmesh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/gate"
	"github.com/hupe1980/ragmesh/ingest"
	"github.com/hupe1980/ragmesh/internal/testutil"
	"github.com/hupe1980/ragmesh/manifest"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/summarize"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/vectorindex"
)

const jankDoc = `---
id: jank
title: Jank
tags: [perf, rendering]
---
## Frame drops
Dropped frames happen when render work exceeds the frame budget.

## Long tasks
Long tasks block the main thread and delay input.
`

const netDoc = `---
id: net
title: Network
---
## Requests
Slow network requests delay page load.
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	kb := filepath.Join(dir, "kb")
	require.NoError(t, os.MkdirAll(filepath.Join(kb, "perf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(kb, "perf", "jank.md"), []byte(jankDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(kb, "net.md"), []byte(netDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(kb, "notes.txt"), []byte("ignored"), 0o600))

	cfg := config.Default()
	cfg.Discovery.KnowledgeRoots = []string{kb}
	cfg.Index.Dir = filepath.Join(dir, "index")
	cfg.Docs.JSONL = filepath.Join(dir, "index", "chunks.jsonl")
	cfg.Embedding.Dim = 256
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	report, err := Build(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, "bow", report.Manifest.EmbedderName)
	assert.Equal(t, 256, report.Manifest.EmbedderDim)
	assert.Equal(t, 3, report.Manifest.NumVectors)
	assert.NotNil(t, report.Manifest.VectorsSHA256)
	require.NoError(t, manifest.VerifyContent(cfg.Index.Dir, filepath.Join(cfg.Index.Dir, vectorindex.VectorsFile)))

	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	out, err := rt.Router.Search(ctx, tool.VectorSearchRequest{Query: "dropped frames render budget", K: 2})
	require.NoError(t, err)
	require.NotEmpty(t, out.Hits)
	assert.True(t, strings.HasPrefix(out.Hits[0].ID, "jank#"))
	assert.NotEmpty(t, out.Hits[0].Text)

	docs, err := rt.Router.Docs(tool.GetDocsRequest{IDs: []string{out.Hits[0].ID}, Return: "parent"})
	require.NoError(t, err)
	require.Len(t, docs.Docs, 1)
	assert.Equal(t, "jank", docs.Docs[0].ID)
}

func TestOpen_ManifestMismatch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	_, err := Build(ctx, cfg)
	require.NoError(t, err)

	cfg.Embedding.Backend = "hash"
	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Router.Search(ctx, tool.VectorSearchRequest{Query: "jank"})
	require.Error(t, err)
	var ce *manifest.CompatibilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"embedder_name"}, ce.Fields())
}

func TestOpen_RejectsVectorsChangedAfterBuild(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	_, err := Build(ctx, cfg)
	require.NoError(t, err)

	chunks, err := ingest.ReadJSONL(cfg.Docs.JSONL)
	require.NoError(t, err)
	backend, err := NewBackend(config.Embedding{Backend: "hash", Dim: cfg.Embedding.Dim, Normalize: true})
	require.NoError(t, err)
	idx, err := vectorindex.New(cfg.Index.Impl)
	require.NoError(t, err)
	require.NoError(t, IndexChunks(ctx, backend, idx, chunks))
	require.NoError(t, vectorindex.Save(cfg.Index.Dir, idx))

	_, err = Open(ctx, cfg)
	require.Error(t, err)
	var ce *manifest.CompatibilityError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "does not match the manifest hash")
}

func TestBuild_FailedRebuildLeavesNoManifest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	report, err := Build(ctx, cfg)
	require.NoError(t, err)

	metas := filepath.Join(cfg.Index.Dir, vectorindex.MetasFile)
	require.NoError(t, os.Remove(metas))
	require.NoError(t, os.MkdirAll(filepath.Join(metas, "blocker"), 0o755))

	_, err = Build(ctx, cfg)
	require.Error(t, err)
	_, err = os.Stat(report.ManifestPath)
	assert.True(t, os.IsNotExist(err))

	_, err = Open(ctx, cfg)
	assert.Error(t, err)
}

func TestOpen_KeywordAndBleve(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []string{"keyword", "bleve"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig(t)
			_, err := Ingest(ctx, cfg)
			require.NoError(t, err)

			cfg.Search.Mode = mode
			rt, err := Open(ctx, cfg)
			require.NoError(t, err)
			defer rt.Close()

			out, err := rt.Router.Dispatch(ctx, tool.VectorSearch, map[string]any{"query": "network"})
			require.NoError(t, err)
			hits, ok := out["hits"].([]any)
			require.True(t, ok)
			require.NotEmpty(t, hits)
			assert.Equal(t, "net#0", hits[0].(map[string]any)["id"])
		})
	}
}

func TestIngest_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Docs.JSONL = ""
	cfg.Docs.SQLite = filepath.Join(t.TempDir(), "docs.db")
	cfg.Search.Mode = "keyword"

	chunks, err := Ingest(ctx, cfg)
	require.NoError(t, err)

	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()
	assert.Len(t, rt.Chunks, len(chunks))
	text, ok := rt.Docs.Text("net#0")
	require.True(t, ok)
	assert.Contains(t, text, "network")
}

func TestRuntime_Loop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Search.Mode = "keyword"
	cfg.Agent.SourcesFooter = true
	_, err := Ingest(ctx, cfg)
	require.NoError(t, err)

	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Loop()
	require.Error(t, err)

	rt.Model = model.NewScriptedModel(
		testutil.ToolAction(tool.VectorSearch, map[string]any{"query": "network"}),
		testutil.FinalAction("Slow requests delay load.", "net#0"),
	)
	loop, err := rt.Loop()
	require.NoError(t, err)
	res, err := loop.Run(ctx, "Why is my page slow? Cite sources.")
	require.NoError(t, err)
	assert.Equal(t, "Slow requests delay load.\nSources: net#0", res.Answer)

	names := map[string]bool{}
	for _, info := range rt.Router.Tools() {
		names[info.Name] = true
	}
	assert.True(t, names["decide_branch"])
	assert.True(t, names["extract_process"])
	assert.True(t, names["find_video_sink_dropped_frames"])
}

func TestRuntime_BudgetPerRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Search.Mode = "keyword"
	cfg.Gate.BudgetLimit = 1
	_, err := Ingest(ctx, cfg)
	require.NoError(t, err)

	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	profile := `{"meta": {"startTime": 10, "endTime": 50}, "processes": [{"pid": 1}]}`
	for run := 0; run < 3; run++ {
		rt.Model = model.NewScriptedModel(
			testutil.ToolAction("decide_branch", nil),
			testutil.FinalAction("general analysis"),
		)
		loop, err := rt.Loop(func(o *agent.LoopOptions) { o.Subject = profile })
		require.NoError(t, err)
		res, err := loop.Run(ctx, "which branch?")
		require.NoError(t, err, "run %d", run)
		assert.EqualValues(t, 1, res.Steps[0].Result["budget_count"])
	}
	assert.Equal(t, 0, rt.Session.Budget.Count())

	sctx := rt.WithSession(ctx)
	sess, ok := gate.SessionFrom(sctx)
	require.True(t, ok)
	assert.Same(t, sctx, rt.WithSession(sctx))
	assert.Equal(t, 1, sess.Budget.Limit())
}

func TestFactories(t *testing.T) {
	b, err := NewBackend(config.Embedding{Backend: "hash", Dim: 8, Normalize: true})
	require.NoError(t, err)
	assert.Equal(t, "hash", b.Identity().Name)

	_, err = NewBackend(config.Embedding{Backend: "glove"})
	require.Error(t, err)

	m, err := NewModel(config.Model{})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = NewModel(config.Model{Provider: "cohere"})
	require.Error(t, err)

	s, err := NewSummarizer(config.Summarizer{Kind: "fallback"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, summarize.Fallback{}, s)

	_, err = NewSummarizer(config.Summarizer{Kind: "generative"}, nil, nil)
	require.Error(t, err)

	s, err = NewSummarizer(config.Summarizer{Kind: "generative"}, model.NewScriptedModel(), nil)
	require.NoError(t, err)
	assert.IsType(t, &summarize.Generative{}, s)
}
