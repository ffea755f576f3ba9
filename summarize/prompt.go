package summarize

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/model"
)

const promptHitRunes = 300

var styleNotes = map[string]string{
	StyleBullet:   "Write 3-6 short bullet points.",
	StyleAbstract: "Write a tight paragraph.",
	StyleQA:       "Write a short direct answer.",
}

// BuildPrompt returns the model request asking for a cited summary of hits.
func BuildPrompt(style string, hits []core.SearchHit, tokenBudget int) model.Request {
	system := "You are a careful assistant. Summarize ONLY from the provided context.\n" +
		"Keep it concise. Do not invent facts. Respect the user's requested style.\n" +
		"For every fact, append a citation marker in the form [[CITE:ID]] where ID is the source id.\n" +
		fmt.Sprintf("Stay within approximately %d tokens.", tokenBudget)

	lines := make([]string, len(hits))
	for i, h := range hits {
		txt := strings.Join(strings.Fields(h.Text), " ")
		if len([]rune(txt)) > promptHitRunes {
			txt = string([]rune(txt)[:promptHitRunes]) + "…"
		}
		lines[i] = fmt.Sprintf("[%s] %s", h.ID, txt)
	}

	note, ok := styleNotes[style]
	if !ok {
		note = "Write a concise summary."
	}

	user := fmt.Sprintf("Style: %s\nGuidance: %s\n\nContext:\n%s\n\n", style, note, strings.Join(lines, "\n")) +
		"Output rules:\n" +
		"- Use only the context above.\n" +
		"- Append [[CITE:ID]] after each fact or sentence.\n" +
		"- Be concise."

	return model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: system},
			{Role: model.RoleUser, Content: user},
		},
	}
}

// RewriteMarkers replaces [[CITE:ID]] markers with "(ID)". A marker without
// closing brackets stops the rewrite and the remainder is kept verbatim.
func RewriteMarkers(raw string) string {
	var b strings.Builder
	rest := raw
	for {
		j := strings.Index(rest, "[[CITE:")
		if j < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:j])
		k := strings.Index(rest[j:], "]]")
		if k < 0 {
			b.WriteString(rest[j:])
			break
		}
		b.WriteString("(" + rest[j+len("[[CITE:"):j+k] + ")")
		rest = rest[j+k+2:]
	}
	return b.String()
}
