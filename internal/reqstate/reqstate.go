// Package reqstate carries the agent loop's per-request escalation
// side channel through context.Context so the escalate_to_human tool
// handler (internal/tools) and the agent loop (internal/agent) can
// share it without creating an import cycle between those packages.
package reqstate

import (
	"context"
	"sync"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

type ctxKey struct{}

// State holds the mutable state a single request's tool calls may
// populate. Escalation is set by escalate_to_human and observed by
// the agent loop; it never terminates the loop by itself (spec §4.3).
type State struct {
	mu         sync.Mutex
	escalation *model.EscalationDraft
}

// New creates an empty per-request State.
func New() *State {
	return &State{}
}

// SetEscalation stores the escalation draft. A second call overwrites
// the first — the loop driver observes whatever was stored last.
func (s *State) SetEscalation(d *model.EscalationDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalation = d
}

// Escalation returns the stored draft, or nil if escalate_to_human was
// never called this request.
func (s *State) Escalation() *model.EscalationDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalation
}

// WithState attaches State to ctx.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext retrieves the State attached by WithState, if any.
func FromContext(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(ctxKey{}).(*State)
	return s, ok
}
