package agent

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/ragmesh/core"
)

// Action kinds.
const (
	ActionTool  = "tool"
	ActionFinal = "final"
)

// LastHits is the placeholder a model may put into args.hits to refer to the
// hits of the previous tool result.
const LastHits = "$last_hits"

const source = "agent"

// Action is one decoded model step.
type Action struct {
	Action    string         `json:"action"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Answer    string         `json:"answer,omitempty"`
	Citations []string       `json:"citations,omitempty"`
}

// ParseAction decodes raw model output into an Action. Surrounding markdown
// code fences are ignored. Anything but a single JSON object with a known
// action is a PARSE_ERROR.
func ParseAction(raw string) (Action, error) {
	text := stripFences(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return Action{}, &core.Error{Code: core.CodeParseError, Source: source, Message: "model output is not a single JSON object", Details: raw, Err: err}
	}
	if obj == nil {
		return Action{}, parseErr(raw, "model output is null")
	}

	kind, _ := obj["action"].(string)
	switch kind {
	case ActionTool:
		name, _ := obj["name"].(string)
		if strings.TrimSpace(name) == "" {
			return Action{}, parseErr(raw, "tool action without a name")
		}
		args := map[string]any{}
		if v, ok := obj["args"]; ok && v != nil {
			m, ok := v.(map[string]any)
			if !ok {
				return Action{}, parseErr(raw, "args must be an object")
			}
			args = m
		}
		return Action{Action: ActionTool, Name: name, Args: args}, nil

	case ActionFinal:
		answer, _ := obj["answer"].(string)
		var cites []string
		switch v := obj["citations"].(type) {
		case nil:
		case []any:
			for _, c := range v {
				s, ok := c.(string)
				if !ok {
					return Action{}, parseErr(raw, "citations must be strings")
				}
				cites = append(cites, s)
			}
		default:
			return Action{}, parseErr(raw, "citations must be a list")
		}
		return Action{Action: ActionFinal, Answer: answer, Citations: cites}, nil

	default:
		return Action{}, parseErr(raw, "unsupported action %q", kind)
	}
}

func parseErr(raw, format string, args ...any) error {
	e := core.NewError(core.CodeParseError, source, format, args...)
	e.Details = raw
	return e
}

// stripFences removes a leading ``` line (with optional language tag) and a
// trailing ``` from s.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
