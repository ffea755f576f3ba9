package summarize

import (
	"context"
	"fmt"

	"github.com/hupe1980/ragmesh/core"
)

// Fallback is the deterministic summarizer used when no model is configured.
type Fallback struct{}

var _ Summarizer = Fallback{}

// Summarize implements Summarizer. The summary holds at most
// CharBudget(tokenBudget) runes and each snippet is clipped by rune count,
// so multi-byte text may exceed the limit in bytes.
func (Fallback) Summarize(_ context.Context, hits []core.SearchHit, style string, tokenBudget int) (Result, error) {
	if err := CheckStyle(style); err != nil {
		return Result{}, err
	}
	if err := checkBudget(tokenBudget); err != nil {
		return Result{}, err
	}
	limit := CharBudget(tokenBudget)
	if limit == 0 || len(hits) == 0 {
		return Result{Citations: []core.Citation{}}, nil
	}
	perLine := max(24, min(140, limit/4))

	var (
		buf      string
		maxLines = len(hits)
		format   = "• %s (%s)"
	)
	switch style {
	case StyleAbstract:
		maxLines, format = 3, "%s (%s)."
	case StyleQA:
		maxLines, format = 2, "%s (%s)"
		if next, ok := appendLine(buf, "Answer:", limit); ok {
			buf = next
		}
	}

	for i, h := range hits {
		if i >= maxLines {
			break
		}
		line := fmt.Sprintf(format, cleanSnippet(h.Text, perLine), h.ID)
		next, ok := appendLine(buf, line, limit)
		if !ok {
			break
		}
		buf = next
	}
	return Result{Summary: buf, Citations: ExtractCitations(buf)}, nil
}
