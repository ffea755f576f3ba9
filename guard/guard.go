// Package guard validates final answers against citation requirements.
//
// A user question that mentions sources, citations or references must be
// answered with at least one citation, and every cited id must have been
// observed in a tool result during the session.
package guard

import (
	"regexp"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/summarize"
)

const source = "guard"

var sourcesRe = regexp.MustCompile(`(?i)\b(source|sources|cite|citation|citations|reference|references)\b`)

// NeedsCitations reports whether the user text asks for sources.
func NeedsCitations(userText string) bool {
	return sourcesRe.MatchString(userText)
}

// InlineCitationIDs returns the ids of "(id)" markers in text.
func InlineCitationIDs(text string) []string {
	cs := summarize.ExtractCitations(text)
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// Validate checks a final answer. Explicit citations take precedence over
// inline markers in the answer.
func Validate(userText, answer string, explicit []string, seen map[string]bool) error {
	provided := explicit
	if len(provided) == 0 {
		provided = InlineCitationIDs(answer)
	}

	if NeedsCitations(userText) && len(provided) == 0 {
		return core.NewError(core.CodeGuardCitationRequired, source, "user requested sources but none were provided")
	}

	for _, id := range provided {
		if !seen[id] {
			return &core.Error{
				Code:    core.CodeGuardCitationUnknownID,
				Source:  source,
				Message: "cited id '" + id + "' was not observed in tool outputs",
				Details: id,
			}
		}
	}
	return nil
}
