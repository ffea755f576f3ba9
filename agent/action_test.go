package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/tool"
)

func TestParseAction(t *testing.T) {
	t.Run("tool", func(t *testing.T) {
		a, err := ParseAction(`{"action":"tool","name":"vector_search","args":{"query":"jank"}}`)
		require.NoError(t, err)
		assert.Equal(t, ActionTool, a.Action)
		assert.Equal(t, tool.VectorSearch, a.Name)
		assert.Equal(t, "jank", a.Args["query"])
	})

	t.Run("tool without args", func(t *testing.T) {
		a, err := ParseAction(`{"action":"tool","name":"x"}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, a.Args)
	})

	t.Run("final in code fence", func(t *testing.T) {
		a, err := ParseAction("```json\n{\"action\":\"final\",\"answer\":\"ok\",\"citations\":[\"a#0\"]}\n```")
		require.NoError(t, err)
		assert.Equal(t, ActionFinal, a.Action)
		assert.Equal(t, "ok", a.Answer)
		assert.Equal(t, []string{"a#0"}, a.Citations)
	})

	bad := map[string]string{
		"prose":             "let me think",
		"array":             `[{"action":"final"}]`,
		"two objects":       `{"action":"final"} {"action":"final"}`,
		"null":              `null`,
		"unknown action":    `{"action":"plan"}`,
		"missing action":    `{"name":"vector_search"}`,
		"missing tool name": `{"action":"tool","args":{}}`,
		"blank tool name":   `{"action":"tool","name":"  "}`,
		"args not object":   `{"action":"tool","name":"x","args":[1]}`,
		"citations scalar":  `{"action":"final","answer":"a","citations":"x"}`,
		"citation number":   `{"action":"final","answer":"a","citations":[1]}`,
	}
	for name, raw := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAction(raw)
			require.Error(t, err)
			assert.Equal(t, core.CodeParseError, core.CodeOf(err))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1} "))
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}```"))
}
