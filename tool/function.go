package tool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/hupe1980/ragmesh/core"
)

// SubjectArg is the payload key carrying a domain tool's subject.
const SubjectArg = "profile"

// DomainFunc is a domain tool implementation. args holds only the allowed
// arguments present in the payload.
type DomainFunc func(ctx context.Context, subject any, args map[string]any) (any, error)

// DomainTool exposes a plain Go function as a named tool.
type DomainTool struct {
	Name        string
	Description string
	// AllowedArgs lists the payload keys forwarded to Func. Others are
	// logged and ignored.
	AllowedArgs []string
	Func        DomainFunc
}

func (d DomainTool) info() Info {
	props := map[string]any{SubjectArg: map[string]any{"type": "object"}}
	for _, a := range d.AllowedArgs {
		props[a] = map[string]any{}
	}
	return Info{
		Name:        d.Name,
		Kind:        KindDomain,
		Description: d.Description,
		Parameters:  map[string]any{"type": "object", "properties": props},
	}
}

// Table is a tabular domain result. It is normalized to
// {data: records, columns, shape}.
type Table interface {
	Columns() []string
	Records() []map[string]any
}

// Rows is a simple Table backed by positional rows.
type Rows struct {
	Cols []string
	Data [][]any
}

// Columns implements Table.
func (r Rows) Columns() []string { return r.Cols }

// Records implements Table.
func (r Rows) Records() []map[string]any {
	out := make([]map[string]any, len(r.Data))
	for i, row := range r.Data {
		rec := make(map[string]any, len(r.Cols))
		for j, c := range r.Cols {
			if j < len(row) {
				rec[c] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

type subjectKey struct{}

// WithSubject attaches the active domain subject to ctx. Domain tools use it
// when the payload carries no "profile".
func WithSubject(ctx context.Context, subject any) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the subject attached by WithSubject.
func SubjectFrom(ctx context.Context) (any, bool) {
	s := ctx.Value(subjectKey{})
	return s, s != nil
}

// RegisterDomain adds a domain tool. Names must be unique and must not
// shadow a retrieval tool.
func (r *Router) RegisterDomain(dt DomainTool) error {
	if dt.Name == "" || dt.Func == nil {
		return fmt.Errorf("tool: domain tool needs a name and a function")
	}
	if _, ok := retrievalTools[dt.Name]; ok {
		return fmt.Errorf("tool: %q is a retrieval tool", dt.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.domain[dt.Name]; ok {
		return fmt.Errorf("tool: domain tool %q already registered", dt.Name)
	}
	r.domain[dt.Name] = dt
	return nil
}

func (r *Router) callDomain(ctx context.Context, dt DomainTool, payload map[string]any) (map[string]any, error) {
	subject, ok := payload[SubjectArg]
	if !ok || subject == nil {
		subject, ok = SubjectFrom(ctx)
	}
	if !ok {
		return nil, core.NewError(core.CodeMissingProfile, dt.Name, "provide 'profile' in payload or attach one to the context")
	}

	allowed := make(map[string]bool, len(dt.AllowedArgs))
	for _, a := range dt.AllowedArgs {
		allowed[a] = true
	}
	args := map[string]any{}
	var ignored []string
	for k, v := range payload {
		switch {
		case k == SubjectArg:
		case allowed[k]:
			args[k] = v
		default:
			ignored = append(ignored, k)
		}
	}
	if len(ignored) > 0 {
		sort.Strings(ignored)
		r.opts.Logger.Warn("ignoring unexpected args", "tool", dt.Name, "ignored", ignored, "allowed", dt.AllowedArgs)
	}

	result, err := dt.Func(ctx, subject, args)
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &core.Error{Code: core.CodeExecution, Source: dt.Name, Message: err.Error(), Err: err}
	}
	return NormalizeResult(result)
}

// NormalizeResult converts a domain result into a keyed map: maps pass
// through, a Table becomes {data, columns, shape}, anything else {data: v}.
func NormalizeResult(result any) (map[string]any, error) {
	switch v := result.(type) {
	case map[string]any:
		return v, nil
	case Table:
		records := v.Records()
		cols := v.Columns()
		return map[string]any{
			"data":    records,
			"columns": cols,
			"shape":   []int{len(records), len(cols)},
		}, nil
	case nil:
		return map[string]any{"data": nil}, nil
	}
	if k := reflect.ValueOf(result).Kind(); k == reflect.Map || k == reflect.Struct {
		return flatten(result)
	}
	return map[string]any{"data": result}, nil
}
