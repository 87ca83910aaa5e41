package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// EscalationRepo persists escalation drafts produced by the
// escalate_to_human tool. SuggestedDocs is stored as a Postgres
// text[] column via pq.Array, the same marshaling trick the teacher
// repo uses for its own string-slice column.
type EscalationRepo struct {
	pool *pgxpool.Pool
}

// NewEscalationRepo creates an EscalationRepo.
func NewEscalationRepo(pool *pgxpool.Pool) *EscalationRepo {
	return &EscalationRepo{pool: pool}
}

func (r *EscalationRepo) Insert(ctx context.Context, d *model.EscalationDraft) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO escalation_drafts (id, request_id, title, request_type, problem_statement, suggested_docs, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		d.RequestID, d.Title, string(d.RequestType), d.ProblemStatement,
		pq.Array(d.SuggestedDocs), time.Now().UTC(),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.Escalation.Insert: %w", err)
	}
	return nil
}

func (r *EscalationRepo) GetByRequestID(ctx context.Context, requestID string) (*model.EscalationDraft, error) {
	var d model.EscalationDraft
	var requestType string
	err := r.pool.QueryRow(ctx, `
		SELECT id, request_id, title, request_type, problem_statement, suggested_docs, created_at
		FROM escalation_drafts WHERE request_id = $1`, requestID,
	).Scan(&d.ID, &d.RequestID, &d.Title, &requestType, &d.ProblemStatement,
		pq.Array(&d.SuggestedDocs), &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.Escalation.GetByRequestID: %w", err)
	}
	d.RequestType = model.RequestType(requestType)
	return &d, nil
}
