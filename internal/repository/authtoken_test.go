package repository

import (
	"context"
	"os"
	"testing"
	"time"
)

func setupAuthTokenRepo(t *testing.T) (*AuthTokenRepo, func()) {
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
	return NewAuthTokenRepo(pool), func() { pool.Close() }
}

func TestAuthTokenRepo_Lookup_HashesBeforeComparing(t *testing.T) {
	repo, cleanup := setupAuthTokenRepo(t)
	defer cleanup()

	raw := "lp_test_" + time.Now().Format("150405.000000000")
	hash := HashToken(raw)

	ctx := context.Background()
	if _, err := repo.pool.Exec(ctx, `
		INSERT INTO auth_tokens (key_id, key_name, token_hash, user_id)
		VALUES ($1, $2, $3, $4)`, "key-1", "test key", hash, "user-1"); err != nil {
		t.Fatalf("seed auth token: %v", err)
	}

	got, err := repo.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got.KeyID != "key-1" || got.UserID != "user-1" {
		t.Errorf("Lookup() = %+v, want key-1/user-1", got)
	}
}

func TestAuthTokenRepo_Lookup_RevokedTokenNotFound(t *testing.T) {
	repo, cleanup := setupAuthTokenRepo(t)
	defer cleanup()

	raw := "lp_revoked_" + time.Now().Format("150405.000000000")
	hash := HashToken(raw)

	ctx := context.Background()
	if _, err := repo.pool.Exec(ctx, `
		INSERT INTO auth_tokens (key_id, key_name, token_hash, revoked_at)
		VALUES ($1, $2, $3, now())`, "key-2", "revoked key", hash); err != nil {
		t.Fatalf("seed revoked token: %v", err)
	}

	_, err := repo.Lookup(ctx, raw)
	if err != ErrTokenNotFound {
		t.Errorf("Lookup() error = %v, want ErrTokenNotFound", err)
	}
}

func TestAuthTokenRepo_Lookup_UnknownTokenNotFound(t *testing.T) {
	repo, cleanup := setupAuthTokenRepo(t)
	defer cleanup()

	_, err := repo.Lookup(context.Background(), "lp_never_issued")
	if err != ErrTokenNotFound {
		t.Errorf("Lookup() error = %v, want ErrTokenNotFound", err)
	}
}
