package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultBudgetLimit is the number of decisions a session may make.
const DefaultBudgetLimit = 3

// BudgetExceededError is returned by the decision that pushes a session's
// count past its limit, and by every decision after it.
type BudgetExceededError struct {
	Count int
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("branch budget exceeded: %d/%d", e.Count, e.Limit)
}

// Budget counts decisions against a fixed limit. It never resets.
type Budget struct {
	limit int
	count int
	mu    sync.Mutex
}

// NewBudget creates a budget allowing limit decisions.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Increment increases the counter by one and returns the new count. It
// returns a *BudgetExceededError once the count exceeds the limit.
func (b *Budget) Increment() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.count > b.limit {
		return b.count, &BudgetExceededError{Count: b.count, Limit: b.limit}
	}
	return b.count, nil
}

// Count returns the number of decisions made.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Limit returns the configured limit.
func (b *Budget) Limit() int { return b.limit }

// Remaining returns how many decisions are left, never negative.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return max(0, b.limit-b.count)
}

// Session is one analysis session owning a budget.
type Session struct {
	ID     string
	Budget *Budget
}

// NewSession creates a session with a fresh id and budget.
func NewSession(limit int) *Session {
	return &Session{ID: uuid.NewString(), Budget: NewBudget(limit)}
}

type sessionKey struct{}

// WithSession attaches sess to ctx. Domain tools charge decisions to the
// context session before falling back to the one they were created with.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session attached by WithSession.
func SessionFrom(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}
