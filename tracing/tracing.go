// Package tracing is the small capability interface used to record decision
// and control-loop events. Every tracer implements both events and spans;
// NoOp is the default wherever a tracer is optional.
package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/ragmesh/logging"
)

// Attrs are structured event attributes.
type Attrs map[string]any

// Span is an open timed section.
type Span interface {
	// End closes the span. attrs are merged into the span's attributes.
	End(attrs Attrs)
}

// Tracer records structured events and spans.
type Tracer interface {
	Event(ctx context.Context, name string, attrs Attrs)
	StartSpan(ctx context.Context, name string, attrs Attrs) Span
}

// OrNoOp returns t, or NoOp when t is nil.
func OrNoOp(t Tracer) Tracer {
	if t == nil {
		return NoOp{}
	}
	return t
}

// NoOp discards everything.
type NoOp struct{}

// Event implements Tracer.
func (NoOp) Event(context.Context, string, Attrs) {}

// StartSpan implements Tracer.
func (NoOp) StartSpan(context.Context, string, Attrs) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) End(Attrs) {}

// Record is one captured event or closed span.
type Record struct {
	Name     string
	Attrs    Attrs
	Span     bool
	Duration time.Duration
}

// Recorder captures events and spans in memory, in the order they complete.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Event implements Tracer.
func (r *Recorder) Event(_ context.Context, name string, attrs Attrs) {
	r.add(Record{Name: name, Attrs: copyAttrs(attrs)})
}

// StartSpan implements Tracer.
func (r *Recorder) StartSpan(_ context.Context, name string, attrs Attrs) Span {
	return &recordedSpan{r: r, name: name, attrs: copyAttrs(attrs), start: time.Now()}
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of everything recorded.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Names returns the recorded names in order.
func (r *Recorder) Names() []string {
	recs := r.Records()
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Name
	}
	return out
}

// Find returns the first record with the given name.
func (r *Recorder) Find(name string) (Record, bool) {
	for _, rec := range r.Records() {
		if rec.Name == name {
			return rec, true
		}
	}
	return Record{}, false
}

type recordedSpan struct {
	r     *Recorder
	name  string
	attrs Attrs
	start time.Time
	once  sync.Once
}

func (s *recordedSpan) End(attrs Attrs) {
	s.once.Do(func() {
		for k, v := range attrs {
			s.attrs[k] = v
		}
		s.r.add(Record{Name: s.name, Attrs: s.attrs, Span: true, Duration: time.Since(s.start)})
	})
}

// Logger writes events and span completions to a logging.Logger.
type Logger struct {
	logger logging.Logger
}

// NewLogger creates a tracer backed by l.
func NewLogger(l logging.Logger) *Logger {
	return &Logger{logger: logging.OrNoOp(l)}
}

// Event implements Tracer.
func (l *Logger) Event(_ context.Context, name string, attrs Attrs) {
	l.logger.Info("trace "+name, flatten(attrs)...)
}

// StartSpan implements Tracer.
func (l *Logger) StartSpan(_ context.Context, name string, attrs Attrs) Span {
	l.logger.Debug("span start "+name, flatten(attrs)...)
	return &logSpan{l: l.logger, name: name, start: time.Now()}
}

type logSpan struct {
	l     logging.Logger
	name  string
	start time.Time
}

func (s *logSpan) End(attrs Attrs) {
	args := append(flatten(attrs), "duration", time.Since(s.start))
	s.l.Info("span end "+s.name, args...)
}

// Multi fans out to several tracers in order.
type Multi []Tracer

// Event implements Tracer.
func (m Multi) Event(ctx context.Context, name string, attrs Attrs) {
	for _, t := range m {
		t.Event(ctx, name, attrs)
	}
}

// StartSpan implements Tracer.
func (m Multi) StartSpan(ctx context.Context, name string, attrs Attrs) Span {
	spans := make(multiSpan, len(m))
	for i, t := range m {
		spans[i] = t.StartSpan(ctx, name, attrs)
	}
	return spans
}

type multiSpan []Span

func (m multiSpan) End(attrs Attrs) {
	for _, s := range m {
		s.End(attrs)
	}
}

func copyAttrs(a Attrs) Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func flatten(a Attrs) []any {
	out := make([]any, 0, 2*len(a))
	for k, v := range a {
		out = append(out, k, v)
	}
	return out
}
