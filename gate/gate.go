// Package gate selects an analysis branch for a profile.
//
// Decide always runs base checks first (a non-empty process list and a
// positive duration), then scores the configured rules by marker counts and
// picks the top candidate, falling back to "general". Every decision that
// passes the base checks is charged to the session budget; the decision that
// exceeds the budget fails with *BudgetExceededError.
package gate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/tracing"
)

// Fallback branch and reason used when no rule matches.
const (
	GeneralBranch = "general"
	GeneralReason = "no candidates; falling back to general"
)

// DefaultSampleLimit bounds the markers inspected per rule.
const DefaultSampleLimit = 20000

// Trace event names.
const (
	EventBaseChecks     = "base_checks_ran"
	EventCandidates     = "branch_candidates"
	EventSelected       = "branch_selected"
	EventBudget         = "branch_budget"
	EventBudgetExceeded = "branch_budget_exceeded"
	SpanDecision        = "decision"
)

const candidatePreview = 8

// BaseCheckError reports a subject that failed the sanity checks.
type BaseCheckError struct {
	Reason string
	Err    error
}

func (e *BaseCheckError) Error() string { return "base check failed: " + e.Reason }

func (e *BaseCheckError) Unwrap() error { return e.Err }

// Candidate is a scored branch proposal.
type Candidate struct {
	Branch   string         `json:"branch"`
	Reason   string         `json:"reason"`
	Score    float64        `json:"score"`
	Features map[string]any `json:"features,omitempty"`
}

// Decision is the selected branch.
type Decision struct {
	Branch     string      `json:"branch"`
	Reason     string      `json:"reason"`
	Score      float64     `json:"score"`
	Count      int         `json:"budget_count"`
	Limit      int         `json:"budget_limit"`
	Candidates []Candidate `json:"candidates"`
}

// BaseCheckResult summarizes a subject that passed the base checks.
type BaseCheckResult struct {
	ProcessCount int
	Start, End   float64
	Duration     float64
	SizeBytes    int
}

// Options configure a Gate.
type Options struct {
	SampleLimit int
	Tracer      tracing.Tracer
	Logger      logging.Logger
}

// Gate evaluates rules against subjects. It holds no per-session state.
type Gate struct {
	rules []Rule
	opts  Options
}

// New creates a gate over rules.
func New(rules []Rule, optFns ...func(o *Options)) *Gate {
	opts := Options{SampleLimit: DefaultSampleLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Tracer = tracing.OrNoOp(opts.Tracer)
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Gate{rules: rules, opts: opts}
}

// Rules returns the configured rules.
func (g *Gate) Rules() []Rule { return g.rules }

// BaseChecks validates the subject.
func BaseChecks(s *Subject) (BaseCheckResult, error) {
	procs := s.Processes()
	if len(procs) == 0 {
		return BaseCheckResult{}, &BaseCheckError{Reason: "no processes found in profile"}
	}
	start, end := s.TimeRange()
	if end-start <= 0 {
		return BaseCheckResult{}, &BaseCheckError{Reason: "invalid time range in profile (duration <= 0)"}
	}
	return BaseCheckResult{
		ProcessCount: len(procs),
		Start:        start,
		End:          end,
		Duration:     end - start,
		SizeBytes:    s.Size(),
	}, nil
}

// Candidates scores every rule and returns matches ranked by score desc.
// Equal scores keep rule order.
func (g *Gate) Candidates(s *Subject) []Candidate {
	var out []Candidate
	for _, r := range g.rules {
		if c, ok := r.Evaluate(s, g.opts.SampleLimit); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Decide selects a branch for s and charges the session budget.
func (g *Gate) Decide(ctx context.Context, sess *Session, s *Subject) (Decision, error) {
	span := g.opts.Tracer.StartSpan(ctx, SpanDecision, tracing.Attrs{"session_id": sess.ID, "subject": s.Name()})
	start := time.Now()

	d, err := g.decide(ctx, sess, s)
	attrs := tracing.Attrs{"duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		attrs["error"] = err.Error()
	} else {
		attrs["branch"] = d.Branch
		attrs["annotation"] = fmt.Sprintf("chosen branch: %s (reason: %s)", d.Branch, d.Reason)
	}
	span.End(attrs)
	logging.LogDecision(g.opts.Logger, d.Branch, d.Reason, sess.Budget.Count(), sess.Budget.Limit(), err)
	return d, err
}

func (g *Gate) decide(ctx context.Context, sess *Session, s *Subject) (Decision, error) {
	tr := g.opts.Tracer

	res, err := BaseChecks(s)
	if err != nil {
		return Decision{}, err
	}
	tr.Event(ctx, EventBaseChecks, tracing.Attrs{
		"process_count":      res.ProcessCount,
		"duration_ms":        res.Duration,
		"profile_size_bytes": res.SizeBytes,
	})

	cands := g.Candidates(s)
	preview := make([]map[string]any, 0, min(len(cands), candidatePreview))
	for _, c := range cands[:min(len(cands), candidatePreview)] {
		preview = append(preview, map[string]any{"branch": c.Branch, "score": c.Score, "reason": c.Reason})
	}
	tr.Event(ctx, EventCandidates, tracing.Attrs{"candidates": preview})

	d := Decision{Branch: GeneralBranch, Reason: GeneralReason, Candidates: cands}
	if len(cands) > 0 {
		d.Branch, d.Reason, d.Score = cands[0].Branch, cands[0].Reason, cands[0].Score
	}
	if d.Candidates == nil {
		d.Candidates = []Candidate{}
	}
	tr.Event(ctx, EventSelected, tracing.Attrs{"branch": d.Branch, "reason": d.Reason, "score": d.Score})

	count, err := sess.Budget.Increment()
	d.Count, d.Limit = count, sess.Budget.Limit()
	tr.Event(ctx, EventBudget, tracing.Attrs{"count": count, "limit": d.Limit})
	if err != nil {
		tr.Event(ctx, EventBudgetExceeded, tracing.Attrs{"count": count, "limit": d.Limit})
		return Decision{}, err
	}
	return d, nil
}
