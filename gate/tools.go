package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/ragmesh/tool"
)

// Domain tool names.
const (
	ToolDecideBranch   = "decide_branch"
	ToolExtractProcess = "extract_process"
	ToolDroppedFrames  = "find_video_sink_dropped_frames"
)

// droppedFrameMarker is the marker name emitted when the video sink drops a frame.
const droppedFrameMarker = "videosinkdroppedframe"

// DomainTools exposes the gate to the tool router. Decisions are charged to
// the session in the call context (see WithSession), else to fallback.
func (g *Gate) DomainTools(fallback *Session) []tool.DomainTool {
	return []tool.DomainTool{
		{
			Name:        ToolDecideBranch,
			Description: "Run base checks on the active profile and select an analysis branch.",
			Func: func(ctx context.Context, subject any, _ map[string]any) (any, error) {
				s, err := SubjectOf(subject)
				if err != nil {
					return nil, err
				}
				sess := fallback
				if cs, ok := SessionFrom(ctx); ok {
					sess = cs
				}
				return g.Decide(ctx, sess, s)
			},
		},
		{
			Name:        ToolExtractProcess,
			Description: "List processes of the active profile, optionally filtered by name substring or pid.",
			AllowedArgs: []string{"name", "pid"},
			Func: func(_ context.Context, subject any, args map[string]any) (any, error) {
				s, err := SubjectOf(subject)
				if err != nil {
					return nil, err
				}
				name, _ := args["name"].(string)
				pid := ""
				if v, ok := args["pid"]; ok && v != nil {
					pid = fmt.Sprint(v)
				}
				return ProcessTable(s, name, pid), nil
			},
		},
		{
			Name:        ToolDroppedFrames,
			Description: "Count video sink dropped-frame markers per process of the active profile.",
			AllowedArgs: []string{"pid"},
			Func: func(_ context.Context, subject any, args map[string]any) (any, error) {
				s, err := SubjectOf(subject)
				if err != nil {
					return nil, err
				}
				pid := ""
				if v, ok := args["pid"]; ok && v != nil {
					pid = fmt.Sprint(v)
				}
				return DroppedFrames(s, pid), nil
			},
		},
	}
}

// DroppedFrames lists processes with dropped-frame markers as rows of
// pid, name, count and the first and last marker times. Processes without
// drops are omitted.
func DroppedFrames(s *Subject, pid string) tool.Rows {
	rows := tool.Rows{Cols: []string{"pid", "name", "dropped", "first", "last"}}
	for _, p := range s.Processes() {
		id := p.Get("pid").String()
		if pid != "" && id != pid {
			continue
		}
		count := 0
		first, last := 0.0, 0.0
		for _, m := range p.Get("markers.markers").Array() {
			if !strings.Contains(strings.ToLower(markerName(m)), droppedFrameMarker) {
				continue
			}
			t := markerTime(m)
			if count == 0 || t < first {
				first = t
			}
			if count == 0 || t > last {
				last = t
			}
			count++
		}
		if count == 0 {
			continue
		}
		rows.Data = append(rows.Data, []any{id, p.Get("name").String(), count, first, last})
	}
	return rows
}

// ProcessTable lists the subject's processes as rows of
// pid, name, start, end and marker count.
func ProcessTable(s *Subject, nameFilter, pid string) tool.Rows {
	rows := tool.Rows{Cols: []string{"pid", "name", "start", "end", "markers"}}
	for _, p := range s.Processes() {
		name := p.Get("name").String()
		id := p.Get("pid").String()
		if nameFilter != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(nameFilter)) {
			continue
		}
		if pid != "" && id != pid {
			continue
		}
		rows.Data = append(rows.Data, []any{
			id,
			name,
			p.Get("timeRange.start").Float(),
			p.Get("timeRange.end").Float(),
			len(p.Get("markers.markers").Array()),
		})
	}
	return rows
}
