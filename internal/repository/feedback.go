package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// FeedbackRepo is an append-only store of user verdicts on answers,
// grounded on the teacher's content_gap.go insert/list shape.
type FeedbackRepo struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepo creates a FeedbackRepo.
func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

// Insert appends a feedback record. Duplicate verdicts from the same
// user for the same request_id are allowed to be written (the
// uniqueness rule is enforced at read time, per spec §4.10) so this
// is a plain insert, never an upsert.
func (r *FeedbackRepo) Insert(ctx context.Context, f *model.FeedbackRecord) error {
	f.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO feedback_records
			(request_id, thread_key, user_id, verdict, question_snapshot, route_mode, article_count, top_similarity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.RequestID, f.ThreadKey, f.UserID, string(f.Verdict), f.QuestionSnapshot,
		f.RouteMode, f.ArticleCount, f.TopSimilarity, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.Feedback.Insert: %w", err)
	}
	return nil
}

// FirstVerdict returns the earliest-recorded verdict for a user on a
// request_id, implementing the "duplicate verdicts are ignored at
// read time" rule.
func (r *FeedbackRepo) FirstVerdict(ctx context.Context, requestID, userID string) (model.Verdict, error) {
	var v string
	err := r.pool.QueryRow(ctx, `
		SELECT verdict FROM feedback_records
		WHERE request_id = $1 AND user_id = $2
		ORDER BY created_at ASC LIMIT 1`, requestID, userID,
	).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("repository.Feedback.FirstVerdict: %w", err)
	}
	return model.Verdict(v), nil
}
