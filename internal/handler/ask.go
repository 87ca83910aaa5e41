package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/lighthq/helpdesk-rag/internal/apperr"
	"github.com/lighthq/helpdesk-rag/internal/convcache"
	"github.com/lighthq/helpdesk-rag/internal/middleware"
	"github.com/lighthq/helpdesk-rag/internal/model"
	"github.com/lighthq/helpdesk-rag/internal/pipeline"
)

// AskRequest is the POST /ask request body (spec §4.8).
type AskRequest struct {
	Question             string             `json:"question"`
	ConversationHistory   []ConversationTurn `json:"conversation_history,omitempty"`
	Options               *AskOptions        `json:"options,omitempty"`
}

// ConversationTurn is one entry of conversation_history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskOptions toggles optional response fields.
type AskOptions struct {
	IncludeEvidence         bool `json:"include_evidence,omitempty"`
	IncludeTechnicalDetails bool `json:"include_technical_details,omitempty"`
}

// AskResponse is the POST /ask 200 response body.
type AskResponse struct {
	RequestID  string         `json:"request_id"`
	Answer     AskAnswer      `json:"answer"`
	Metadata   AskMetadata    `json:"metadata"`
	Evidence   []AskEvidence  `json:"evidence,omitempty"`
	Escalation *AskEscalation `json:"escalation,omitempty"`
}

// AskAnswer is the answer object within AskResponse.
type AskAnswer struct {
	Summary        string `json:"summary"`
	DetailedAnswer string `json:"detailed_answer,omitempty"`
	Confidence     string `json:"confidence"`
}

// AskMetadata describes how the answer was produced.
type AskMetadata struct {
	Mode            string `json:"mode"`
	LatencyMS       int64  `json:"latency_ms"`
	PipelineVersion string `json:"pipeline_version"`
}

// AskEvidence is one collected article, included when
// options.include_evidence is true.
type AskEvidence struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// AskEscalation mirrors the escalation draft produced by
// escalate_to_human, when present.
type AskEscalation struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	RequestType      string   `json:"request_type"`
	ProblemStatement string   `json:"problem_statement"`
	SuggestedDocs    []string `json:"suggested_docs,omitempty"`
}

// errorBody is the fixed error response shape (spec §6).
type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

const (
	minQuestionLen    = 1
	maxQuestionLen    = 2000
	maxHistoryEntries = 10
	maxHistoryLen     = 2000

	retrievalFailedMessage = "I don't have a help article covering this topic."
	gateFailureMessage     = "I don't have a help article covering this topic."
	internalErrorMessage   = "Something went wrong processing your question. Please try again; if it persists, reference request "
)

// injectionPatterns is the fixed regex list rejecting attempts to
// override instructions, extract the system prompt, or redefine the
// assistant's role, per spec §6. Advisory defense-in-depth: the
// citation gate is the actual grounding backstop.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all |the )?(previous|prior|above) instructions`),
	regexp.MustCompile(`(?i)disregard (all |the )?(previous|prior|above)`),
	regexp.MustCompile(`(?i)reveal (your |the )?(system prompt|instructions)`),
	regexp.MustCompile(`(?i)print (your |the )?(system prompt|instructions)`),
	regexp.MustCompile(`(?i)you are now`),
	regexp.MustCompile(`(?i)act as (if you are |)(a|an)? ?(different|new) (ai|assistant|model)`),
	regexp.MustCompile(`(?i)pretend (you are|to be)`),
	regexp.MustCompile(`(?i)forget (everything|all) (you know|above)`),
}

// EscalationProcessor persists and publishes escalation drafts,
// satisfied by *escalation.Service.
type EscalationProcessor interface {
	Process(ctx context.Context, requestID string, d *model.EscalationDraft) error
}

// AskDeps bundles everything the /ask handler wires together.
type AskDeps struct {
	Loop            pipeline.AgentLoop
	Synth           pipeline.Synthesizer
	Escalations     EscalationProcessor
	ConvCache       convcache.Cache
	Metrics         *middleware.Metrics // optional
	PipelineVersion string
	Mode            string // e.g. "standard"; constant until multi-mode routing exists
}

// Ask returns the POST /ask handler (spec §4.8).
func Ask(deps AskDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())
		start := time.Now()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, apperr.NewValidationError("invalid request body", map[string]string{"body": "must be valid JSON"}))
			return
		}

		if fields, ok := validateAskRequest(req); !ok {
			writeError(w, requestID, apperr.NewValidationError("request failed validation", fields))
			return
		}

		threadContext := buildThreadContext(req.ConversationHistory)

		outcome, err := pipeline.Run(r.Context(), req.Question, threadContext, deps.Loop, deps.Synth, requestID, deps.Mode, deps.PipelineVersion)
		if err != nil {
			slog.Error("ask: pipeline failed", "request_id", requestID, "error", err)
			writeError(w, requestID, err)
			return
		}

		if deps.Metrics != nil {
			if outcome.GateFailed {
				deps.Metrics.IncrementCitationGateFailure()
			}
			if outcome.Answer.Escalation != nil {
				deps.Metrics.IncrementEscalation()
			}
			if outcome.Answer.Confidence == model.ConfidenceNeedsClarification {
				deps.Metrics.IncrementNeedsClarification()
			}
		}

		if outcome.Answer.Escalation != nil && deps.Escalations != nil {
			if err := deps.Escalations.Process(r.Context(), requestID, outcome.Answer.Escalation); err != nil {
				slog.Error("ask: escalation processing failed", "request_id", requestID, "error", err)
			}
		}

		if outcome.Answer.DetailedAnswer != "" && deps.ConvCache != nil {
			entry := convcache.Entry{DetailedAnswer: outcome.Answer.DetailedAnswer, CreatedAt: time.Now().UTC()}
			if err := deps.ConvCache.Set(r.Context(), requestID, entry); err != nil {
				slog.Warn("ask: conversation cache write failed", "request_id", requestID, "error", err)
			}
		}

		resp := AskResponse{
			RequestID: requestID,
			Answer: AskAnswer{
				Summary:    outcome.Answer.Summary,
				Confidence: string(outcome.Answer.Confidence),
			},
			Metadata: AskMetadata{
				Mode:            deps.Mode,
				LatencyMS:       time.Since(start).Milliseconds(),
				PipelineVersion: deps.PipelineVersion,
			},
		}
		if req.Options != nil && req.Options.IncludeTechnicalDetails {
			resp.Answer.DetailedAnswer = outcome.Answer.DetailedAnswer
		}
		if req.Options != nil && req.Options.IncludeEvidence {
			for path, a := range outcome.Articles {
				resp.Evidence = append(resp.Evidence, AskEvidence{Path: path, Title: a.Title})
			}
		}
		if d := outcome.Answer.Escalation; d != nil {
			resp.Escalation = &AskEscalation{
				ID:               d.ID,
				Title:            d.Title,
				RequestType:      string(d.RequestType),
				ProblemStatement: d.ProblemStatement,
				SuggestedDocs:    d.SuggestedDocs,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// validateAskRequest applies spec §4.8's field constraints and the
// prompt-injection filter, returning field-level messages on failure.
func validateAskRequest(req AskRequest) (map[string]string, bool) {
	fields := make(map[string]string)

	qLen := len(req.Question)
	if qLen < minQuestionLen || qLen > maxQuestionLen {
		fields["question"] = fmt.Sprintf("must be between %d and %d characters", minQuestionLen, maxQuestionLen)
	} else {
		for _, p := range injectionPatterns {
			if p.MatchString(req.Question) {
				fields["question"] = "contains a disallowed instruction-override pattern"
				break
			}
		}
	}

	if len(req.ConversationHistory) > maxHistoryEntries {
		fields["conversation_history"] = fmt.Sprintf("must have at most %d entries", maxHistoryEntries)
	}
	for i, turn := range req.ConversationHistory {
		if turn.Role != "user" && turn.Role != "assistant" {
			fields[fmt.Sprintf("conversation_history[%d].role", i)] = "must be user or assistant"
		}
		if len(turn.Content) > maxHistoryLen {
			fields[fmt.Sprintf("conversation_history[%d].content", i)] = fmt.Sprintf("must be at most %d characters", maxHistoryLen)
		}
	}

	return fields, len(fields) == 0
}

// buildThreadContext renders prior conversation_history entries into
// the single string the agent loop seeds as thread context, grounded
// on the teacher's thread-history truncation idiom in chat.go.
func buildThreadContext(history []ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	s := ""
	for _, turn := range history {
		content := turn.Content
		if len(content) > maxHistoryLen {
			content = content[:maxHistoryLen]
		}
		s += turn.Role + ": " + content + "\n"
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError translates an *apperr.Error into the fixed error body
// shape, collapsing every non-validation/rate-limit code to a canned
// internal_error message per spec §7.
func writeError(w http.ResponseWriter, requestID string, err error) {
	var ae *apperr.Error
	if e, ok := apperr.As(err); ok {
		ae = e
	} else {
		ae = apperr.NewInternalError("unexpected error", err)
	}

	body := errorBody{Error: string(ae.Code), RequestID: requestID}
	switch ae.Code {
	case apperr.CodeValidationError:
		body.Message = ae.Message
		body.Details = ae.Details
	case apperr.CodeRateLimitExceeded:
		body.Message = ae.Message
		body.Details = ae.Details
	default:
		body.Message = internalErrorMessage + requestID
	}

	writeJSON(w, apperr.StatusCode(ae.Code), body)
}
