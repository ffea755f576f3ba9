// Package summarize condenses search hits into a short summary whose facts
// carry "(id)" citations with byte offsets into the summary text.
//
// Fallback is deterministic and needs no model. Generative asks a
// model.Model for [[CITE:ID]] markers and rewrites them to "(ID)". Both
// enforce a character budget of four characters per token and only emit
// citations whose offsets slice exactly their id.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/ragmesh/core"
)

// Summary styles.
const (
	StyleBullet   = "bullet"
	StyleAbstract = "abstract"
	StyleQA       = "qa"
)

// CharsPerToken converts a token budget into a character budget.
const CharsPerToken = 4

// Result is a summary with its citations.
type Result struct {
	Summary   string          `json:"summary"`
	Citations []core.Citation `json:"citations"`
}

// Summarizer turns hits into a cited summary.
type Summarizer interface {
	Summarize(ctx context.Context, hits []core.SearchHit, style string, tokenBudget int) (Result, error)
}

// ValidStyle reports whether style is one of the supported styles.
func ValidStyle(style string) bool {
	switch style {
	case StyleBullet, StyleAbstract, StyleQA:
		return true
	}
	return false
}

// CheckStyle returns an INVALID_ARG error for unsupported styles.
func CheckStyle(style string) error {
	if !ValidStyle(style) {
		return core.NewError(core.CodeInvalidArg, "context_summarize", "style must be one of bullet, abstract, qa; got %q", style)
	}
	return nil
}

// CharBudget returns the summary limit for a token budget, counted in
// runes rather than bytes.
func CharBudget(tokenBudget int) int {
	if tokenBudget <= 0 {
		return 0
	}
	return tokenBudget * CharsPerToken
}

// appendLine appends line (newline-separated) to buf if the result stays
// within limit runes. Lines are never appended partially.
func appendLine(buf, line string, limit int) (string, bool) {
	if limit == 0 {
		return buf, false
	}
	sep := ""
	if buf != "" {
		sep = "\n"
	}
	if utf8.RuneCountInString(buf)+len(sep)+utf8.RuneCountInString(line) > limit {
		return buf, false
	}
	return buf + sep + line, true
}

// ExtractCitations scans text for "(id)" spans. The id must be non-empty
// and carry no leading or trailing whitespace.
func ExtractCitations(text string) []core.Citation {
	out := []core.Citation{}
	i := 0
	for i < len(text) {
		if text[i] != '(' {
			i++
			continue
		}
		j := strings.IndexByte(text[i+1:], ')')
		if j <= 0 {
			i++
			continue
		}
		end := i + 1 + j
		inner := text[i+1 : end]
		if strings.TrimFunc(inner, unicode.IsSpace) == inner {
			out = append(out, core.Citation{ID: inner, Offset: [2]int{i + 1, end}})
		}
		i = end + 1
	}
	return out
}

// ValidateCitations keeps only citations whose offsets slice their id out of text.
func ValidateCitations(text string, citations []core.Citation) []core.Citation {
	out := make([]core.Citation, 0, len(citations))
	for _, c := range citations {
		if c.Valid(text) {
			out = append(out, c)
		}
	}
	return out
}

// cleanSnippet collapses whitespace and truncates to maxRunes, ending in "…".
func cleanSnippet(text string, maxRunes int) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes-1]) + "…"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func checkBudget(tokenBudget int) error {
	if tokenBudget < 0 {
		return core.NewError(core.CodeInvalidArg, "context_summarize", "token_budget must be >= 0, got %d", tokenBudget)
	}
	return nil
}

func wrapf(format string, args ...any) error {
	return fmt.Errorf("summarize: "+format, args...)
}
