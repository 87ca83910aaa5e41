// Package escalation assembles the side effects of an
// escalate_to_human tool call: persisting the structured draft
// (internal/repository.EscalationRepo) and publishing it to the
// outbound ticket notifier (internal/notify.Notifier). Surfaces
// (REST /ask, the chat adapter) depend only on this package's
// Service, not on the repo or notifier individually, so neither
// surface re-implements the persist-then-notify sequence.
package escalation

import (
	"context"
	"log/slog"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// Repo is the persistence capability, satisfied by *repository.EscalationRepo.
type Repo interface {
	Insert(ctx context.Context, d *model.EscalationDraft) error
}

// Publisher is the outbound-notification capability, satisfied by
// *notify.Notifier. Optional: a nil Publisher means escalations are
// persisted but never published (e.g. local development).
type Publisher interface {
	Publish(ctx context.Context, d *model.EscalationDraft) error
}

// Service processes escalation drafts.
type Service struct {
	repo      Repo
	publisher Publisher
}

// NewService wires a Service. publisher may be nil.
func NewService(repo Repo, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Process persists d, stamping requestID onto it, and then
// best-effort publishes it to the outbound notifier. A publish
// failure is logged, not returned: the draft is already durably
// stored, and the escalation side channel is defined to never turn
// into a pipeline-level error (spec §4.2/§7).
func (s *Service) Process(ctx context.Context, requestID string, d *model.EscalationDraft) error {
	d.RequestID = requestID
	if err := s.repo.Insert(ctx, d); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, d); err != nil {
			slog.Error("escalation: publish failed", "request_id", requestID, "escalation_id", d.ID, "error", err)
		}
	}
	return nil
}
