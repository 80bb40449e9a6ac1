// Package llmtest provides scripted completers for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/howell-aikit/ideaflow/internal/llm"
)

// Reply is one scripted completion result
type Reply struct {
	Text string
	Err  error
}

// Scripted returns replies in order and records every request.
// When the script runs out it returns Fallback.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	Fallback Reply
	Requests []llm.Request
}

// NewScripted creates a completer returning the given replies in order
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies, Fallback: Reply{Err: llm.ErrUnavailable}}
}

// Text is shorthand for a successful reply
func Text(s string) Reply {
	return Reply{Text: s}
}

// Fail is shorthand for a failed reply
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Complete implements llm.Completer
func (s *Scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	r := s.Fallback
	if len(s.replies) > 0 {
		r = s.replies[0]
		s.replies = s.replies[1:]
	}
	return r.Text, r.Err
}

// Calls returns how many requests were made
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// Func adapts a function to llm.Completer
type Func func(ctx context.Context, req llm.Request) (string, error)

// Complete implements llm.Completer
func (f Func) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is a completer with no configured model
var Unavailable = Func(func(context.Context, llm.Request) (string, error) {
	return "", llm.ErrUnavailable
})
