package gate

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Rule selects a branch when enough matching markers are present.
type Rule struct {
	Name string `toml:"name"`
	// Score is the base score, 0.5 when unset. An explicit 0 is kept.
	Score *float64 `toml:"score"`
	// Reason may contain "{count}".
	Reason   string  `toml:"reason"`
	Markers  Markers `toml:"markers"`
	MinCount int     `toml:"min_count"`
}

// Markers lists marker name substrings.
type Markers struct {
	Any []string `toml:"any"`
}

type rulesFile struct {
	Branches []Rule `toml:"branches"`
}

// ParseRules decodes a TOML document of [[branches]] tables.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("gate: parse rules: %w", err)
	}
	for i, r := range f.Branches {
		if r.Name == "" {
			return nil, fmt.Errorf("gate: rule %d has no name", i)
		}
	}
	return f.Branches, nil
}

// LoadRules reads rules from a TOML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gate: read rules: %w", err)
	}
	return ParseRules(data)
}

func (r Rule) baseScore() float64 {
	if r.Score == nil {
		return 0.5
	}
	return *r.Score
}

func (r Rule) minCount() int {
	if r.MinCount <= 0 {
		return 1
	}
	return r.MinCount
}

func (r Rule) reason(count int) string {
	tpl := r.Reason
	if tpl == "" {
		tpl = "matched markers count={count}"
	}
	return strings.ReplaceAll(tpl, "{count}", fmt.Sprint(count))
}

// Evaluate returns the rule's candidate for s, or false when fewer than
// MinCount markers match.
func (r Rule) Evaluate(s *Subject, sampleLimit int) (Candidate, bool) {
	if len(r.Markers.Any) == 0 {
		return Candidate{}, false
	}
	cnt := s.MarkerCount(r.Markers.Any, sampleLimit)
	minCount := r.minCount()
	if cnt < minCount {
		return Candidate{}, false
	}
	scale := 1.0 + min(float64(cnt)/float64(minCount), 5.0)*0.05
	return Candidate{
		Branch:   r.Name,
		Reason:   r.reason(cnt),
		Score:    r.baseScore() * scale,
		Features: map[string]any{"count": cnt},
	}, true
}
