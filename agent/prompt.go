package agent

import (
	"github.com/hupe1980/ragmesh/internal/util"
	"github.com/hupe1980/ragmesh/tool"
)

// DefaultInstructions is the system prompt template. It is rendered with
// PromptData.
const DefaultInstructions = `You are a helpful assistant that answers questions using tools.
At each step, output ONE JSON object with this shape:
  {"action":"tool","name":"<tool_name>","args":{...}}
or
  {"action":"final","answer":"...","citations":["id1","id2"]}
Available tools: {{join ", " .Names}}
{{range .Tools}}- {{.Name}}: {{.Description}}
{{end}}- Pass "{{.LastHits}}" as args.hits to reuse the hits of the previous tool result.
- If the user asks for sources or citations, cite at least one id you have seen in a tool result.
- Keep the JSON strict. No comments or extra text outside the JSON.`

// PromptData is the template input of the system prompt.
type PromptData struct {
	Tools    []tool.Info
	Names    []string
	LastHits string
}

// Toolset is the part of tool.Router the loop depends on.
type Toolset interface {
	Tools() []tool.Info
}

// RenderInstructions renders tmpl (DefaultInstructions when empty) with the
// tools of ts.
func RenderInstructions(tmpl string, ts Toolset) (string, error) {
	if tmpl == "" {
		tmpl = DefaultInstructions
	}
	tools := ts.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return util.RenderTemplate(tmpl, PromptData{Tools: tools, Names: names, LastHits: LastHits})
}
