package testutil

import "encoding/json"

// ToolAction renders a tool action as the model would emit it.
func ToolAction(name string, args map[string]any) string {
	return mustJSON(map[string]any{"action": "tool", "name": name, "args": args})
}

// FinalAction renders a final action as the model would emit it.
func FinalAction(answer string, citations ...string) string {
	if citations == nil {
		citations = []string{}
	}
	return mustJSON(map[string]any{"action": "final", "answer": answer, "citations": citations})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
