package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const (
	frontMatterDelim = "---\n"
	maxSectionLevel  = 2
	preambleTitle    = "preamble"
)

// Section is a heading-delimited slice of a markdown body.
type Section struct {
	Title string
	Text  string
}

// SplitFrontMatter separates a leading YAML front-matter block from the body.
// Without a well-formed block the whole input is the body. Front matter that
// is not a YAML mapping degrades to an empty map.
func SplitFrontMatter(src string) (map[string]any, string) {
	if !strings.HasPrefix(src, frontMatterDelim) {
		return map[string]any{}, src
	}
	rest := src[len(frontMatterDelim):]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return map[string]any{}, src
	}
	raw, body := rest[:end], rest[end+1+len(frontMatterDelim):]

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return map[string]any{}, body
	}
	return meta, body
}

type headingLine struct {
	line  int
	title string
}

// SplitSections splits a markdown body on level 1 and 2 ATX headings.
// Text before the first heading is titled "preamble". Sections whose text is
// blank are dropped.
func SplitSections(body string) []Section {
	lines := strings.Split(body, "\n")
	headings := findHeadings(body, lines)

	var (
		sections []Section
		title    = preambleTitle
		buf      []string
		next     int
	)
	flush := func() {
		txt := strings.TrimSpace(strings.Join(buf, "\n"))
		if txt != "" {
			sections = append(sections, Section{Title: title, Text: txt})
		}
	}
	for i, line := range lines {
		if next < len(headings) && headings[next].line == i {
			flush()
			title = headings[next].title
			buf = nil
			next++
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

// findHeadings walks the top-level goldmark AST and returns the line numbers
// of ATX headings with level <= 2, in order. Headings inside code blocks,
// lists or quotes are ignored.
func findHeadings(body string, lines []string) []headingLine {
	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	starts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		starts[i] = off
		off += len(l) + 1
	}

	var out []headingLine
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > maxSectionLevel || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		idx := sort.Search(len(starts), func(i int) bool { return starts[i] > seg.Start }) - 1
		if idx < 0 {
			continue
		}
		title, ok := atxTitle(lines[idx])
		if !ok {
			continue // setext heading
		}
		out = append(out, headingLine{line: idx, title: title})
	}
	return out
}

// atxTitle returns the title of an ATX heading line such as "## Signals".
func atxTitle(line string) (string, bool) {
	s := strings.TrimLeft(line, " ")
	if len(line)-len(s) > 3 {
		return "", false
	}
	level := len(s) - len(strings.TrimLeft(s, "#"))
	if level == 0 || level > 6 {
		return "", false
	}
	rest := s[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

var (
	slugStrip = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpace = regexp.MustCompile(`\s+`)
)

// Slugify lowercases s, drops everything but ASCII letters, digits, spaces and
// dashes, and joins words with dashes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "")
	return slugSpace.ReplaceAllString(s, "-")
}
