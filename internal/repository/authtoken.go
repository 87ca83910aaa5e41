package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthToken is a database-issued bearer token's identity record, keyed
// by its hash rather than its plaintext value.
type AuthToken struct {
	KeyID   string
	KeyName string
	UserID  string
}

// ErrTokenNotFound is returned by Lookup when no active token matches
// the given hash.
var ErrTokenNotFound = errors.New("repository: auth token not found")

// AuthTokenRepo looks up lp_-prefixed bearer tokens by their SHA-256
// hash, grounded on the teacher's db.go pool-query style.
type AuthTokenRepo struct {
	pool *pgxpool.Pool
}

// NewAuthTokenRepo creates an AuthTokenRepo.
func NewAuthTokenRepo(pool *pgxpool.Pool) *AuthTokenRepo {
	return &AuthTokenRepo{pool: pool}
}

// HashToken returns the hex-encoded SHA-256 hash of a raw token value.
// The comparison happens in SQL via an indexed equality lookup; the
// constant-time requirement (spec §4.8) applies to the static
// config-key comparison path, not this hash lookup, since an index
// lookup on a hash already leaks no more than the hash itself does.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Lookup resolves a raw token to its identity, or ErrTokenNotFound if
// it doesn't exist or has been revoked.
func (r *AuthTokenRepo) Lookup(ctx context.Context, rawToken string) (*AuthToken, error) {
	hash := HashToken(rawToken)
	var t AuthToken
	var userID *string
	err := r.pool.QueryRow(ctx, `
		SELECT key_id, key_name, user_id
		FROM auth_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL`, hash,
	).Scan(&t.KeyID, &t.KeyName, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.AuthToken.Lookup: %w", err)
	}
	if userID != nil {
		t.UserID = *userID
	}
	return &t, nil
}
