package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedModel(t *testing.T) {
	m := NewScriptedModel("first", "second")
	ctx := context.Background()

	out, err := Complete(ctx, m, Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = Complete(ctx, m, Request{Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	_, err = Complete(ctx, m, Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "hi", reqs[0].Messages[0].Content)
}

func TestScriptedModelError(t *testing.T) {
	boom := errors.New("boom")
	m := NewScriptedModel().Push(Reply{Err: boom}, Reply{Text: "ok"})

	_, err := Complete(context.Background(), m, Request{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Remaining())
}

func TestCompleteConcatenatesPartials(t *testing.T) {
	m := modelFunc(func(ctx context.Context, req Request) (<-chan Response, <-chan error) {
		respCh := make(chan Response, 2)
		errCh := make(chan error)
		respCh <- Response{Partial: true, Text: "ab"}
		respCh <- Response{Partial: true, Text: "c"}
		close(respCh)
		close(errCh)
		return respCh, errCh
	})
	out, err := Complete(context.Background(), m, Request{})
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestWithRateLimit(t *testing.T) {
	base := NewScriptedModel("a", "b")
	assert.Same(t, base, WithRateLimit(base, 0, 1))

	limited := WithRateLimit(base, 60, 1)
	assert.Equal(t, base.Info(), limited.Info())

	_, err := Complete(context.Background(), limited, Request{})
	require.NoError(t, err)

	// The second call needs a token a second from now.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = Complete(ctx, limited, Request{})
	require.Error(t, err)
	assert.Equal(t, 1, base.Remaining())
}

type modelFunc func(ctx context.Context, req Request) (<-chan Response, <-chan error)

func (f modelFunc) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	return f(ctx, req)
}

func (f modelFunc) Info() Info { return Info{Name: "func"} }
