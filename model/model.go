package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string    `json:"instructions,omitempty"` // System prompt
	Messages     []Message `json:"messages"`
	Stream       bool      `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", ...
}

// Model is the minimal interface required to drive generation.
//
// Generate emits zero or more partial responses followed by exactly one final
// response, or a single error. Both channels are closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete runs req and returns the final text. When a provider only emits
// partial chunks the concatenated partial text is returned.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)
	var partial strings.Builder
	var final *Response
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if final != nil {
		return final.Text, nil
	}
	return partial.String(), nil
}

// ErrScriptExhausted is returned by ScriptedModel when no replies remain.
var ErrScriptExhausted = errors.New("model: scripted replies exhausted")

// Reply is one scripted model turn: a text or an error.
type Reply struct {
	Text string
	Err  error
}

// ScriptedModel replays queued replies in order. It records every request so
// tests can inspect the conversation the caller built.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	replies  []Reply
	requests []Request
}

// NewScriptedModel creates a ScriptedModel answering with texts in order.
func NewScriptedModel(texts ...string) *ScriptedModel {
	m := &ScriptedModel{info: Info{Name: "scripted", Provider: "scripted"}}
	for _, t := range texts {
		m.replies = append(m.replies, Reply{Text: t})
	}
	return m
}

// Push appends replies to the queue.
func (m *ScriptedModel) Push(replies ...Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
	return m
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Remaining returns the number of unconsumed replies.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

// Generate implements Model. Streaming requests receive the reply one rune
// per partial chunk before the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var next *Reply
	if len(m.replies) > 0 {
		next = &m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if next == nil {
			errCh <- fmt.Errorf("%w after %d requests", ErrScriptExhausted, len(m.Requests()))
			return
		}
		if next.Err != nil {
			errCh <- next.Err
			return
		}
		if req.Stream {
			for _, r := range next.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: next.Text, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
