package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/tracing"
)

const profileJSON = `{
  "meta": {"startTime": 1000, "endTime": 3000},
  "processes": [
    {"pid": 1, "name": "Parent Process", "timeRange": {"start": 1000, "end": 3000},
     "markers": {"markers": [
       {"name": "VideoSinkDroppedFrame", "startTime": 1500},
       {"name": "videosinkdroppedframe", "startTime": 1200},
       ["AudioUnderrun", 1, 2],
       {"data": {"type": "GCMajor"}}
     ]}},
    {"pid": 2, "name": "GPU Process", "markers": {"markers": [{"name": "VideoSinkDroppedFrame"}]}}
  ]
}`

const rulesTOML = `
[[branches]]
name = "video_drops"
score = 0.8
reason = "dropped frames count={count}"
min_count = 2
markers.any = ["VideoSinkDropped"]

[[branches]]
name = "audio"
reason = "audio underruns count={count}"
markers.any = ["AudioUnderrun"]

[[branches]]
name = "network"
markers.any = ["HttpChannel"]
`

func subject(t *testing.T) *Subject {
	t.Helper()
	s, err := ParseSubject([]byte(profileJSON))
	require.NoError(t, err)
	return s
}

func rules(t *testing.T) []Rule {
	t.Helper()
	r, err := ParseRules([]byte(rulesTOML))
	require.NoError(t, err)
	return r
}

func TestSubject(t *testing.T) {
	s := subject(t)
	assert.Len(t, s.Processes(), 2)
	start, end := s.TimeRange()
	assert.Equal(t, 1000.0, start)
	assert.Equal(t, 3000.0, end)
	assert.Equal(t, 3, s.MarkerCount([]string{"videosinkdropped"}, 0))
	assert.Equal(t, 1, s.MarkerCount([]string{"audiounderrun"}, 0))
	assert.Equal(t, 1, s.MarkerCount([]string{"gcmajor"}, 0))
	assert.Equal(t, 2, s.MarkerCount([]string{"VideoSinkDropped"}, 2))
	assert.Equal(t, 0, s.MarkerCount([]string{""}, 0))

	t.Run("time range from processes", func(t *testing.T) {
		s, err := ParseSubject([]byte(`{"profile": {"processes": [{"timeRange": {"start": 5, "end": 9}}]}}`))
		require.NoError(t, err)
		start, end := s.TimeRange()
		assert.Equal(t, 5.0, start)
		assert.Equal(t, 9.0, end)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseSubject([]byte(`{"processes": [`))
		var bce *BaseCheckError
		assert.ErrorAs(t, err, &bce)
	})
}

func TestRules(t *testing.T) {
	r := rules(t)
	require.Len(t, r, 3)
	assert.Equal(t, "video_drops", r[0].Name)
	assert.Equal(t, []string{"VideoSinkDropped"}, r[0].Markers.Any)

	c, ok := r[0].Evaluate(subject(t), DefaultSampleLimit)
	require.True(t, ok)
	// 3 matches, min 2: 0.8 * (1 + 1.5*0.05)
	assert.InDelta(t, 0.86, c.Score, 1e-9)
	assert.Equal(t, "dropped frames count=3", c.Reason)

	c, ok = r[1].Evaluate(subject(t), DefaultSampleLimit)
	require.True(t, ok)
	assert.InDelta(t, 0.525, c.Score, 1e-9)

	_, ok = r[2].Evaluate(subject(t), DefaultSampleLimit)
	assert.False(t, ok)

	_, err := ParseRules([]byte("[[branches]]\nscore = 1.0\n"))
	assert.Error(t, err)
}

func score(f float64) *float64 { return &f }

func TestExplicitZeroScore(t *testing.T) {
	r, err := ParseRules([]byte(`
[[branches]]
name = "muted"
score = 0.0
markers.any = ["AudioUnderrun"]

[[branches]]
name = "fallback"
markers.any = ["AudioUnderrun"]
`))
	require.NoError(t, err)
	require.NotNil(t, r[0].Score)
	assert.Nil(t, r[1].Score)

	c, ok := r[0].Evaluate(subject(t), DefaultSampleLimit)
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Score)

	c, ok = r[1].Evaluate(subject(t), DefaultSampleLimit)
	require.True(t, ok)
	assert.InDelta(t, 0.525, c.Score, 1e-9)
}

func TestBoostIsCapped(t *testing.T) {
	r := Rule{Name: "x", Score: score(1), Markers: Markers{Any: []string{"VideoSink"}}, MinCount: 1}
	c, ok := r.Evaluate(subject(t), 0)
	require.True(t, ok)
	assert.InDelta(t, 1.15, c.Score, 1e-9)

	busy, err := ParseSubject([]byte(`{"processes": [{"markers": {"markers": [
		{"name": "Jank"}, {"name": "Jank"}, {"name": "Jank"}, {"name": "Jank"},
		{"name": "Jank"}, {"name": "Jank"}, {"name": "Jank"}, {"name": "Jank"}
	]}}]}`))
	require.NoError(t, err)
	c, ok = Rule{Name: "jank", Score: score(1), Markers: Markers{Any: []string{"jank"}}}.Evaluate(busy, 0)
	require.True(t, ok)
	assert.Equal(t, 8, c.Features["count"])
	assert.InDelta(t, 1.25, c.Score, 1e-9)
}

func TestDecide(t *testing.T) {
	ctx := context.Background()
	rec := tracing.NewRecorder()
	g := New(rules(t), func(o *Options) { o.Tracer = rec })
	sess := NewSession(3)

	d, err := g.Decide(ctx, sess, subject(t))
	require.NoError(t, err)
	assert.Equal(t, "video_drops", d.Branch)
	assert.Equal(t, "dropped frames count=3", d.Reason)
	assert.Equal(t, 1, d.Count)
	require.Len(t, d.Candidates, 2)
	assert.Equal(t, "audio", d.Candidates[1].Branch)

	assert.Equal(t, []string{EventBaseChecks, EventCandidates, EventSelected, EventBudget, SpanDecision}, rec.Names())
	span, _ := rec.Find(SpanDecision)
	assert.Equal(t, "chosen branch: video_drops (reason: dropped frames count=3)", span.Attrs["annotation"])
}

func TestDecideFallsBackToGeneral(t *testing.T) {
	g := New(nil)
	d, err := g.Decide(context.Background(), NewSession(1), subject(t))
	require.NoError(t, err)
	assert.Equal(t, GeneralBranch, d.Branch)
	assert.Equal(t, GeneralReason, d.Reason)
	assert.Empty(t, d.Candidates)
}

func TestBudgetScenario(t *testing.T) {
	ctx := context.Background()
	rec := tracing.NewRecorder()
	g := New(rules(t), func(o *Options) { o.Tracer = rec })
	sess := NewSession(3)

	for want := 1; want <= 3; want++ {
		d, err := g.Decide(ctx, sess, subject(t))
		require.NoError(t, err)
		assert.Equal(t, want, d.Count)
	}

	_, err := g.Decide(ctx, sess, subject(t))
	var bee *BudgetExceededError
	require.ErrorAs(t, err, &bee)
	assert.Equal(t, 4, bee.Count)
	assert.Equal(t, 3, bee.Limit)
	_, ok := rec.Find(EventBudgetExceeded)
	assert.True(t, ok)
	assert.Equal(t, 4, sess.Budget.Count())
	assert.Equal(t, 0, sess.Budget.Remaining())
}

func TestBaseChecks(t *testing.T) {
	g := New(rules(t))
	sess := NewSession(3)

	for name, doc := range map[string]string{
		"no processes":   `{"meta": {"startTime": 1, "endTime": 2}, "processes": []}`,
		"zero duration":  `{"meta": {"startTime": 2, "endTime": 2}, "processes": [{"pid": 1}]}`,
		"missing ranges": `{"processes": [{"pid": 1}]}`,
	} {
		s, err := ParseSubject([]byte(doc))
		require.NoError(t, err, name)
		_, err = g.Decide(context.Background(), sess, s)
		var bce *BaseCheckError
		assert.ErrorAs(t, err, &bce, name)
	}
	assert.Equal(t, 0, sess.Budget.Count(), "failed base checks are not charged")
}

func TestLoadSubject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(profileJSON), 0o600))

	s, err := LoadSubject(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Name())

	_, err = LoadSubject(filepath.Join(dir, "missing.json"))
	var bce *BaseCheckError
	assert.ErrorAs(t, err, &bce)
}

func TestDomainTools(t *testing.T) {
	g := New(rules(t))
	sess := NewSession(1)
	r := tool.NewRouter(tool.Services{})
	for _, dt := range g.DomainTools(sess) {
		require.NoError(t, r.RegisterDomain(dt))
	}
	ctx := tool.WithSubject(context.Background(), profileJSON)

	out, err := r.Dispatch(ctx, ToolDecideBranch, nil)
	require.NoError(t, err)
	assert.Equal(t, "video_drops", out["branch"])

	_, err = r.Dispatch(ctx, ToolDecideBranch, nil)
	var bee *BudgetExceededError
	assert.True(t, errors.As(err, &bee))
	assert.Equal(t, core.CodeExecution, core.CodeOf(err))

	out, err = r.Dispatch(ctx, ToolExtractProcess, map[string]any{"name": "gpu"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, out["shape"])
	rows := out["data"].([]map[string]any)
	assert.Equal(t, "2", rows[0]["pid"])
	assert.Equal(t, 1, rows[0]["markers"])

	out, err = r.Dispatch(ctx, ToolExtractProcess, map[string]any{"pid": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, "Parent Process", out["data"].([]map[string]any)[0]["name"])

	out, err = r.Dispatch(ctx, ToolDroppedFrames, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, out["shape"])

	out, err = r.Dispatch(ctx, ToolDroppedFrames, map[string]any{"pid": float64(1)})
	require.NoError(t, err)
	rows = out["data"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0]["dropped"])
	assert.Equal(t, 1200.0, rows[0]["first"])
	assert.Equal(t, 1500.0, rows[0]["last"])
}

func TestDroppedFrames(t *testing.T) {
	s, err := ParseSubject([]byte(`{"processes": [
		{"pid": 7, "name": "Content", "markers": {"markers": [
			["VideoSinkDroppedFrame", 40, 41],
			["VideoSinkDroppedFrame", 10, 11],
			["Paint", 5, 6]
		]}},
		{"pid": 8, "name": "Idle", "markers": {"markers": [["Paint", 1, 2]]}}
	]}`))
	require.NoError(t, err)

	rows := DroppedFrames(s, "")
	assert.Equal(t, [][]any{{"7", "Content", 2, 10.0, 40.0}}, rows.Data)
	assert.Empty(t, DroppedFrames(s, "8").Data)
}

func TestDomainTools_ContextSessionIsCharged(t *testing.T) {
	g := New(rules(t))
	fallback := NewSession(1)
	r := tool.NewRouter(tool.Services{})
	for _, dt := range g.DomainTools(fallback) {
		require.NoError(t, r.RegisterDomain(dt))
	}
	ctx := tool.WithSubject(context.Background(), profileJSON)

	for i := 0; i < 3; i++ {
		sess := NewSession(1)
		out, err := r.Dispatch(WithSession(ctx, sess), ToolDecideBranch, nil)
		require.NoError(t, err, "session %d", i)
		assert.EqualValues(t, 1, out["budget_count"])
		assert.Equal(t, 1, sess.Budget.Count())
	}
	assert.Equal(t, 0, fallback.Budget.Count())

	_, ok := SessionFrom(context.Background())
	assert.False(t, ok)
}
