package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lighthq/helpdesk-rag/internal/model"
	"github.com/lighthq/helpdesk-rag/internal/reqstate"
)

type escalateArgs struct {
	Title            string   `json:"title"`
	RequestType      string   `json:"request_type"`
	ProblemStatement string   `json:"problem_statement"`
	SuggestedDocs    []string `json:"suggested_docs"`
}

var validRequestTypes = map[string]model.RequestType{
	string(model.RequestTypeFeature):       model.RequestTypeFeature,
	string(model.RequestTypeBug):           model.RequestTypeBug,
	string(model.RequestTypeClarification): model.RequestTypeClarification,
}

// EscalateTool implements escalate_to_human: validates the draft's
// shape, stores it in the per-request reqstate.State found on ctx,
// and returns a confirmation string. It never terminates the agent
// loop — the loop driver observes the stored draft after S3/S_fail.
type EscalateTool struct{}

// NewEscalateTool creates an EscalateTool.
func NewEscalateTool() *EscalateTool { return &EscalateTool{} }

func (t *EscalateTool) Name() string { return "escalate_to_human" }
func (t *EscalateTool) Description() string {
	return "Creates a structured support-ticket draft when the question cannot be answered from the corpus. Use only after knowledge_base and a fetch/search attempt have both been tried."
}
func (t *EscalateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":             map[string]any{"type": "string"},
			"request_type":      map[string]any{"type": "string", "enum": []string{"feature_request", "bug_report", "clarification_needed"}},
			"problem_statement": map[string]any{"type": "string"},
			"suggested_docs":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"title", "request_type", "problem_statement"},
	}
}

func (t *EscalateTool) Execute(ctx context.Context, rawArgs json.RawMessage) (string, error) {
	var args escalateArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return errJSON(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Title == "" || args.ProblemStatement == "" {
		return errJSON("title and problem_statement are required"), nil
	}
	requestType, ok := validRequestTypes[args.RequestType]
	if !ok {
		return errJSON(fmt.Sprintf("request_type must be one of feature_request, bug_report, clarification_needed, got %q", args.RequestType)), nil
	}

	draft := &model.EscalationDraft{
		Title:            args.Title,
		RequestType:      requestType,
		ProblemStatement: args.ProblemStatement,
		SuggestedDocs:    args.SuggestedDocs,
	}

	state, ok := reqstate.FromContext(ctx)
	if !ok {
		return errJSON("internal: no request state available to store escalation draft"), nil
	}
	state.SetEscalation(draft)

	return fmt.Sprintf("Escalation draft %q created and will be routed to support.", args.Title), nil
}
