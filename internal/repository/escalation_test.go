package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

func setupEscalationRepo(t *testing.T) (*EscalationRepo, func()) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	migrationSQL, err := os.ReadFile("../../migrations/001_initial_schema.up.sql")
	if err != nil {
		pool.Close()
		t.Fatalf("read migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(migrationSQL)); err != nil {
		pool.Close()
		t.Fatalf("apply migration: %v", err)
	}
	return NewEscalationRepo(pool), func() { pool.Close() }
}

func TestEscalationRepo_InsertAndGet_RoundTripsSuggestedDocs(t *testing.T) {
	repo, cleanup := setupEscalationRepo(t)
	defer cleanup()

	draft := &model.EscalationDraft{
		RequestID:        "req-" + time.Now().Format("150405.000000000"),
		Title:            "Support multi-entity invoices",
		RequestType:      model.RequestTypeFeature,
		ProblemStatement: "Customer wants consolidated invoices across entities.",
		SuggestedDocs:    []string{"billing/multi-currency.md", "billing/entities.md"},
	}

	if err := repo.Insert(context.Background(), draft); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if draft.ID == "" {
		t.Fatal("expected ID to be populated after insert")
	}

	got, err := repo.GetByRequestID(context.Background(), draft.RequestID)
	if err != nil {
		t.Fatalf("GetByRequestID() error: %v", err)
	}
	if got.Title != draft.Title || got.RequestType != draft.RequestType {
		t.Errorf("got %+v, want fields matching %+v", got, draft)
	}
	if len(got.SuggestedDocs) != 2 {
		t.Fatalf("SuggestedDocs = %v, want 2 entries", got.SuggestedDocs)
	}
}
