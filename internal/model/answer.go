package model

import "time"

// Confidence is the grounded answer's confidence level.
type Confidence string

const (
	ConfidenceConfirmed          Confidence = "confirmed"
	ConfidenceNeedsClarification Confidence = "needs_clarification"
)

// RequestType enumerates the escalation ticket categories the LM may
// choose when calling escalate_to_human.
type RequestType string

const (
	RequestTypeFeature       RequestType = "feature_request"
	RequestTypeBug           RequestType = "bug_report"
	RequestTypeClarification RequestType = "clarification_needed"
)

// EscalationDraft is the structured ticket produced when the LM calls
// escalate_to_human. It travels alongside the grounded answer as a
// side channel, never as an error.
type EscalationDraft struct {
	ID               string
	RequestID        string
	Title            string
	RequestType      RequestType
	ProblemStatement string
	SuggestedDocs    []string
	CreatedAt        time.Time
}

// Provenance records how a grounded answer was produced.
type Provenance struct {
	RequestID          string
	LatencyMS          int64
	Mode               string
	PipelineVersion    string
}

// GroundedAnswer is the final object returned to the surface.
type GroundedAnswer struct {
	Summary         string
	DetailedAnswer  string
	Confidence      Confidence
	Escalation      *EscalationDraft
	Provenance      Provenance
}

// Verdict is a user's feedback on a grounded answer.
type Verdict string

const (
	VerdictHelpful    Verdict = "helpful"
	VerdictNotHelpful Verdict = "not_helpful"
)

// FeedbackRecord is an append-only record of a user's verdict on a
// past answer.
type FeedbackRecord struct {
	RequestID      string
	ThreadKey      string
	UserID         string
	Verdict        Verdict
	QuestionSnapshot string
	RouteMode      string
	ArticleCount   int
	TopSimilarity  float64
	CreatedAt      time.Time
}
