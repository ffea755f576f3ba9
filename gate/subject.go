package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Subject is an analysis profile: a JSON document with a process list, a
// time range and per-process marker tables. Fields are read with gjson paths
// so arbitrary profile layouts only need to expose these keys.
type Subject struct {
	raw  []byte
	doc  gjson.Result
	name string
}

// ParseSubject parses a profile document.
func ParseSubject(data []byte) (*Subject, error) {
	if !gjson.ValidBytes(data) {
		return nil, &BaseCheckError{Reason: "failed to parse profile: invalid JSON"}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, &BaseCheckError{Reason: "failed to parse profile: not a JSON object"}
	}
	return &Subject{raw: data, doc: doc}, nil
}

// LoadSubject reads and parses a profile file.
func LoadSubject(path string) (*Subject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &BaseCheckError{Reason: fmt.Sprintf("profile file not found: %s", path), Err: err}
	}
	s, err := ParseSubject(data)
	if err != nil {
		return nil, err
	}
	s.name = path
	return s, nil
}

// SubjectOf converts a domain tool subject (a *Subject, raw JSON, or a
// decoded JSON object) into a *Subject.
func SubjectOf(v any) (*Subject, error) {
	switch t := v.(type) {
	case *Subject:
		return t, nil
	case []byte:
		return ParseSubject(t)
	case string:
		return ParseSubject([]byte(t))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &BaseCheckError{Reason: "unsupported profile value", Err: err}
		}
		return ParseSubject(data)
	}
}

// Name returns the source path, if any.
func (s *Subject) Name() string { return s.name }

// Size returns the document size in bytes.
func (s *Subject) Size() int { return len(s.raw) }

// Processes returns the process list from "processes" or "profile.processes".
func (s *Subject) Processes() []gjson.Result {
	procs := s.doc.Get("processes")
	if !procs.IsArray() {
		procs = s.doc.Get("profile.processes")
	}
	if !procs.IsArray() {
		return nil
	}
	return procs.Array()
}

// TimeRange returns the profile start and end times. Meta times win over
// top-level times; the first process with a valid range fills in otherwise.
func (s *Subject) TimeRange() (start, end float64) {
	start = firstFloat(s.doc, "meta.startTime", "startTime")
	end = firstFloat(s.doc, "meta.endTime", "endTime")
	if start != 0 && end != 0 {
		return start, end
	}
	for _, p := range s.Processes() {
		ps, pe := p.Get("timeRange.start").Float(), p.Get("timeRange.end").Float()
		if pe > ps && ps > 0 {
			return ps, pe
		}
	}
	return start, end
}

func firstFloat(doc gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := doc.Get(p).Float(); v != 0 {
			return v
		}
	}
	return 0
}

// MarkerCount counts markers whose lowercased name contains any of includes,
// inspecting at most limit markers (0 means unlimited). A marker is either an
// object with "name" (or "data.type") or an array whose first element is the name.
func (s *Subject) MarkerCount(includes []string, limit int) int {
	var inc []string
	for _, i := range includes {
		if i != "" {
			inc = append(inc, strings.ToLower(i))
		}
	}
	if len(inc) == 0 {
		return 0
	}
	count, seen := 0, 0
	for _, p := range s.Processes() {
		for _, m := range p.Get("markers.markers").Array() {
			if matchesAny(strings.ToLower(markerName(m)), inc) {
				count++
			}
			seen++
			if limit > 0 && seen >= limit {
				return count
			}
		}
	}
	return count
}

func markerName(m gjson.Result) string {
	if m.IsArray() {
		if first := m.Get("0"); first.Exists() {
			return first.String()
		}
		return ""
	}
	if n := m.Get("name").String(); n != "" {
		return n
	}
	return m.Get("data.type").String()
}

// markerTime returns a marker's start time: the second element of the array
// form, else "startTime" or "start" of the object form.
func markerTime(m gjson.Result) float64 {
	if m.IsArray() {
		return m.Get("1").Float()
	}
	return firstFloat(m, "startTime", "start")
}

func matchesAny(name string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
