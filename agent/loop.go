package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/guard"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/tracing"
)

// DefaultMaxSteps is the step ceiling of a run.
const DefaultMaxSteps = 6

// Trace names emitted by Run.
const (
	SpanRun         = "agent_run"
	EventToolResult = "tool_result"
	EventFinal      = "final_answer"
)

// Dispatcher executes tool calls. *tool.Router implements it.
type Dispatcher interface {
	Toolset
	Dispatch(ctx context.Context, name string, payload map[string]any) (map[string]any, error)
}

// LoopOptions configure a Loop.
type LoopOptions struct {
	// MaxSteps bounds the number of model calls per run.
	MaxSteps int
	// Instructions overrides DefaultInstructions.
	Instructions string
	// SourcesFooter appends "Sources: ..." to answers that carry citations.
	SourcesFooter bool
	// Subject is attached to the run context for domain tools.
	Subject any
	// RunContext derives the context of each run, e.g. to attach per-run
	// state such as a decision budget.
	RunContext func(ctx context.Context) context.Context
	Logger     logging.Logger
	Tracer     tracing.Tracer
}

// Loop drives the tool/final action protocol against a model.
type Loop struct {
	tools Dispatcher
	model model.Model
	opts  LoopOptions
}

// Step records one model turn.
type Step struct {
	Index    int            `json:"index"`
	Raw      string         `json:"raw"`
	Action   Action         `json:"action"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Result is the outcome of a run. On error it still holds the steps taken.
type Result struct {
	RunID     string   `json:"run_id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	Seen      []string `json:"seen"`
	Steps     []Step   `json:"steps"`
}

// NewLoop creates a control loop over tools and m.
func NewLoop(tools Dispatcher, m model.Model, optFns ...func(o *LoopOptions)) *Loop {
	opts := LoopOptions{MaxSteps: DefaultMaxSteps}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	opts.Tracer = tracing.OrNoOp(opts.Tracer)
	return &Loop{tools: tools, model: m, opts: opts}
}

// Run answers question. It returns the partial result together with any
// error: PARSE_ERROR for malformed actions, the guard's error for rejected
// final answers, tool and model errors as they occur, and MAX_STEPS_EXCEEDED
// when no final answer arrives in time.
func (l *Loop) Run(ctx context.Context, question string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Question: question, Citations: []string{}}
	if l.opts.Subject != nil {
		ctx = tool.WithSubject(ctx, l.opts.Subject)
	}
	if l.opts.RunContext != nil {
		ctx = l.opts.RunContext(ctx)
	}

	span := l.opts.Tracer.StartSpan(ctx, SpanRun, tracing.Attrs{"run_id": res.RunID, "max_steps": l.opts.MaxSteps})
	err := l.run(ctx, res)
	attrs := tracing.Attrs{"steps": len(res.Steps), "seen": len(res.Seen)}
	if err != nil {
		attrs["error"] = err.Error()
		if code := core.CodeOf(err); code != "" {
			attrs["code"] = code
		}
	}
	span.End(attrs)
	return res, err
}

func (l *Loop) run(ctx context.Context, res *Result) error {
	instructions, err := RenderInstructions(l.opts.Instructions, l.tools)
	if err != nil {
		return fmt.Errorf("agent: render instructions: %w", err)
	}
	req := model.Request{
		Instructions: instructions,
		Messages:     []model.Message{{Role: model.RoleUser, Content: res.Question}},
	}
	seen := map[string]bool{}
	var lastHits any

	log := l.opts.Logger
	info := l.model.Info()

	for i := 0; i < l.opts.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		raw, err := model.Complete(ctx, l.model, req)
		logging.LogModelCall(log, info.Name, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("agent: model call: %w", err)
		}

		step := Step{Index: i, Raw: raw}
		act, err := ParseAction(raw)
		if err != nil {
			step.Error = err.Error()
			step.Duration = time.Since(start)
			res.Steps = append(res.Steps, step)
			return err
		}
		step.Action = act

		if act.Action == ActionFinal {
			step.Duration = time.Since(start)
			res.Steps = append(res.Steps, step)
			res.Seen = sortedKeys(seen)
			if err := guard.Validate(res.Question, act.Answer, act.Citations, seen); err != nil {
				log.Warn("final answer rejected", "run_id", res.RunID, "error", err.Error())
				return err
			}
			res.Answer = act.Answer
			if len(act.Citations) > 0 {
				res.Citations = act.Citations
			}
			if l.opts.SourcesFooter {
				res.Answer = WithSourcesFooter(res.Answer, res.Citations)
			}
			l.opts.Tracer.Event(ctx, EventFinal, tracing.Attrs{"run_id": res.RunID, "citations": len(res.Citations)})
			return nil
		}

		args := act.Args
		if h, ok := args["hits"].(string); ok && h == LastHits {
			args = core.CloneMeta(args)
			if lastHits != nil {
				args["hits"] = lastHits
			} else {
				args["hits"] = []any{}
			}
			step.Action.Args = args
		}

		out, err := l.tools.Dispatch(ctx, act.Name, args)
		step.Duration = time.Since(start)
		if err != nil {
			step.Error = err.Error()
			res.Steps = append(res.Steps, step)
			res.Seen = sortedKeys(seen)
			return err
		}
		step.Result = out
		res.Steps = append(res.Steps, step)

		// $last_hits always refers to the previous tool result
		lastHits = out["hits"]
		collectIDs(seen, out["hits"])
		collectIDs(seen, out["docs"])
		res.Seen = sortedKeys(seen)

		l.opts.Tracer.Event(ctx, EventToolResult, tracing.Attrs{"run_id": res.RunID, "step": i, "tool": act.Name, "seen": len(seen)})

		observation, err := json.Marshal(map[string]any{"tool_result": out})
		if err != nil {
			return fmt.Errorf("agent: encode tool result: %w", err)
		}
		req.Messages = append(req.Messages,
			model.Message{Role: model.RoleAssistant, Content: raw},
			model.Message{Role: model.RoleUser, Content: string(observation)},
		)
	}

	res.Seen = sortedKeys(seen)
	return core.NewError(core.CodeMaxStepsExceeded, source, "no final answer after %d steps", l.opts.MaxSteps)
}

// WithSourcesFooter appends a "Sources: a, b" line to answer. Answers without
// citations are returned unchanged.
func WithSourcesFooter(answer string, citations []string) string {
	if len(citations) == 0 {
		return answer
	}
	return answer + "\nSources: " + strings.Join(citations, ", ")
}

// collectIDs adds the "id" of every object in list to seen.
func collectIDs(seen map[string]bool, list any) {
	switch items := list.(type) {
	case []any:
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				if id, ok := m["id"].(string); ok && id != "" {
					seen[id] = true
				}
			}
		}
	case []map[string]any:
		for _, m := range items {
			if id, ok := m["id"].(string); ok && id != "" {
				seen[id] = true
			}
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
