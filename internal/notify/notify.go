// Package notify publishes escalation tickets to the outbound
// Pub/Sub topic SPEC_FULL.md names as the "outbound ticket notifier"
// external collaborator: the subscriber (whatever ticketing system
// consumes the topic) is out of scope for this service, which only
// publishes. This is the teacher's cloud.google.com/go/pubsub
// dependency's publish-side use, complementing
// internal/manifest.Invalidator's subscribe-side use of the same
// library.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// TicketMessage is the payload published for each escalation draft.
// The exact addressee/ticketing-system shape is an Open Question the
// spec leaves unresolved (see DESIGN.md); this is the minimal,
// self-describing envelope any subscriber can route on.
type TicketMessage struct {
	EscalationID     string   `json:"escalation_id"`
	RequestID        string   `json:"request_id"`
	Title            string   `json:"title"`
	RequestType      string   `json:"request_type"`
	ProblemStatement string   `json:"problem_statement"`
	SuggestedDocs    []string `json:"suggested_docs,omitempty"`
}

// Notifier publishes escalation drafts to a Pub/Sub topic.
type Notifier struct {
	topic *pubsub.Topic
}

// NewNotifier wires a Notifier to an already-open topic handle.
func NewNotifier(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Publish sends one escalation draft as a TicketMessage and blocks
// until the publish result is available, surfacing any transport
// error to the caller (escalation.Service.Process logs publish
// failures and does not return them — the draft is already persisted).
func (n *Notifier) Publish(ctx context.Context, d *model.EscalationDraft) error {
	msg := TicketMessage{
		EscalationID:     d.ID,
		RequestID:        d.RequestID,
		Title:            d.Title,
		RequestType:      string(d.RequestType),
		ProblemStatement: d.ProblemStatement,
		SuggestedDocs:    d.SuggestedDocs,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify.Publish: marshal: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("notify.Publish: %w", err)
	}
	return nil
}
