package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lighthq/helpdesk-rag/internal/apperr"
	"github.com/lighthq/helpdesk-rag/internal/middleware"
	"github.com/lighthq/helpdesk-rag/internal/model"
)

// FeedbackRecorder is the append-only capability Feedback needs,
// satisfied by *repository.FeedbackRepo.
type FeedbackRecorder interface {
	Insert(ctx context.Context, f *model.FeedbackRecord) error
}

// FeedbackRequest is the POST /feedback request body: a verdict on a
// previously returned answer, referenced by its request_id (spec §4.10).
type FeedbackRequest struct {
	RequestID string `json:"request_id"`
	Verdict   string `json:"verdict"`
	ThreadKey string `json:"thread_key,omitempty"`
}

// Feedback returns the POST /feedback handler. It records every
// verdict it receives; the "duplicate verdicts from the same user are
// ignored" rule is enforced at read time (FeedbackRepo.FirstVerdict),
// not here.
func Feedback(recorder FeedbackRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, apperr.NewValidationError("invalid request body", map[string]string{"body": "must be valid JSON"}))
			return
		}

		fields := make(map[string]string)
		if req.RequestID == "" {
			fields["request_id"] = "is required"
		}
		verdict := model.Verdict(req.Verdict)
		if verdict != model.VerdictHelpful && verdict != model.VerdictNotHelpful {
			fields["verdict"] = "must be helpful or not_helpful"
		}
		if len(fields) > 0 {
			writeError(w, requestID, apperr.NewValidationError("request failed validation", fields))
			return
		}

		identity, _ := middleware.IdentityFromContext(r.Context())
		record := &model.FeedbackRecord{
			RequestID: req.RequestID,
			ThreadKey: req.ThreadKey,
			UserID:    identity.UserID,
			Verdict:   verdict,
		}
		if record.UserID == "" {
			record.UserID = identity.KeyID
		}

		if err := recorder.Insert(r.Context(), record); err != nil {
			writeError(w, requestID, apperr.NewInternalError("failed to record feedback", err))
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}
