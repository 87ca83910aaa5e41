package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTimeout is the maximum time a single tool call may run,
// grounded on the teacher's DefaultToolTimeout.
const DefaultTimeout = 30 * time.Second

// Call is a single LM-issued tool call.
type Call struct {
	ID   string // provider-assigned call id, echoed back in the result
	Name string
	Args json.RawMessage
}

// Result is the string the LM sees for one dispatched call.
type Result struct {
	ID      string
	Name    string
	Content string
}

// Dispatcher executes tool calls against a Registry with a per-call
// timeout and panic recovery, grounded on the teacher's ToolExecutor.
// Unlike the teacher, there is no RBAC layer here: every tool is
// reachable from any agent-loop turn, since this service has a single
// internal caller (the agent loop), not multi-role end users invoking
// tools directly.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher with the default per-call timeout.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, timeout: DefaultTimeout}
}

// Execute runs a single tool call. Any failure — unknown tool,
// timeout, panic, or handler error — is encoded as a JSON error
// string in the result rather than returned as a Go error, per
// spec §4.3: "a handler failure returns a descriptive JSON error
// string rather than raising".
func (d *Dispatcher) Execute(ctx context.Context, call Call) Result {
	tool, ok := d.registry.Find(call.Name)
	if !ok {
		return Result{ID: call.ID, Name: call.Name, Content: errJSON(fmt.Sprintf("unknown tool %q", call.Name))}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", call.Name, p)}
			}
		}()
		content, err := tool.Execute(ctx, call.Args)
		done <- outcome{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{ID: call.ID, Name: call.Name, Content: errJSON(fmt.Sprintf("%s timed out after %s", call.Name, d.timeout))}
	case o := <-done:
		if o.err != nil {
			return Result{ID: call.ID, Name: call.Name, Content: errJSON(o.err.Error())}
		}
		return Result{ID: call.ID, Name: call.Name, Content: o.content}
	}
}

func errJSON(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return string(b)
}
