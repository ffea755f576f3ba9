package mcpserver

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/docstore"
	"github.com/hupe1980/ragmesh/internal/testutil"
	"github.com/hupe1980/ragmesh/search"
	"github.com/hupe1980/ragmesh/tool"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	corpus := testutil.Corpus()
	router := tool.NewRouter(tool.Services{Search: search.NewKeyword(corpus), Docs: docstore.New(corpus)})
	s, err := NewServer(router)
	require.NoError(t, err)

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestNewServer_RequiresRetrieval(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrMissingRetrieval)
}

func TestListTools(t *testing.T) {
	session := connect(t)
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(res.Tools))
	for i, tl := range res.Tools {
		names[i] = tl.Name
	}
	assert.ElementsMatch(t, []string{tool.VectorSearch, tool.GetDocsByID, tool.ContextSummarize}, names)
}

func TestCallTools(t *testing.T) {
	ctx := context.Background()
	session := connect(t)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.VectorSearch,
		Arguments: map[string]any{"query": "jank", "k": 2},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	hits, ok := out["hits"].([]any)
	require.True(t, ok)
	require.Len(t, hits, 1)
	hit := hits[0].(map[string]any)
	assert.Equal(t, "jank#0", hit["id"])

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.ContextSummarize,
		Arguments: map[string]any{"hits": hits},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	summary := res.StructuredContent.(map[string]any)["summary"].(string)
	assert.Contains(t, summary, "(jank#0)")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.GetDocsByID,
		Arguments: map[string]any{"ids": []string{"jank#0"}, "return": "parent"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	docs := res.StructuredContent.(map[string]any)["docs"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "jank", docs[0].(map[string]any)["id"])
}

func TestCallTool_Error(t *testing.T) {
	session := connect(t)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tool.GetDocsByID,
		Arguments: map[string]any{"ids": []string{"x"}, "return": "everything"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
