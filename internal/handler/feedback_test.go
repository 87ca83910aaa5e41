package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

type fakeFeedbackRecorder struct {
	inserted *model.FeedbackRecord
	err      error
}

func (f *fakeFeedbackRecorder) Insert(ctx context.Context, rec *model.FeedbackRecord) error {
	f.inserted = rec
	return f.err
}

func feedbackRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestFeedback_RecordsVerdict(t *testing.T) {
	recorder := &fakeFeedbackRecorder{}
	handler := Feedback(recorder)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, feedbackRequest(t, `{"request_id":"req-1","verdict":"helpful"}`))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	if recorder.inserted == nil {
		t.Fatal("feedback was not recorded")
	}
	if recorder.inserted.Verdict != model.VerdictHelpful {
		t.Errorf("verdict = %q, want helpful", recorder.inserted.Verdict)
	}
}

func TestFeedback_RejectsInvalidVerdict(t *testing.T) {
	handler := Feedback(&fakeFeedbackRecorder{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, feedbackRequest(t, `{"request_id":"req-1","verdict":"maybe"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFeedback_RequiresRequestID(t *testing.T) {
	handler := Feedback(&fakeFeedbackRecorder{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, feedbackRequest(t, `{"verdict":"helpful"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
