package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lighthq/helpdesk-rag/internal/repository"
)

type mockTokenLookup struct {
	token *repository.AuthToken
	err   error
}

func (m *mockTokenLookup) Lookup(ctx context.Context, rawToken string) (*repository.AuthToken, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.token, nil
}

func newIdentityEchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s:%s", id.KeyID, id.UserID)
	})
}

func TestAuth_MissingToken(t *testing.T) {
	handler := Auth(&mockTokenLookup{err: repository.ErrTokenNotFound}, nil)(newIdentityEchoHandler())

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidDBToken(t *testing.T) {
	lookup := &mockTokenLookup{token: &repository.AuthToken{KeyID: "key-1", KeyName: "test", UserID: "user-abc"}}
	handler := Auth(lookup, nil)(newIdentityEchoHandler())

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	req.Header.Set("Authorization", "Bearer lp_sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "key-1:user-abc" {
		t.Errorf("body = %q, want %q", got, "key-1:user-abc")
	}
}

func TestAuth_InvalidDBToken(t *testing.T) {
	handler := Auth(&mockTokenLookup{err: repository.ErrTokenNotFound}, nil)(newIdentityEchoHandler())

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	req.Header.Set("Authorization", "Bearer lp_badtoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidStaticAPIKey(t *testing.T) {
	keys := []APIKey{{ID: "k1", Name: "test key", Secret: "sk-test-123"}}
	handler := Auth(&mockTokenLookup{err: repository.ErrTokenNotFound}, keys)(newIdentityEchoHandler())

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	req.Header.Set("Authorization", "Bearer sk-test-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "k1:" {
		t.Errorf("body = %q, want %q", got, "k1:")
	}
}

func TestAuth_UnknownStaticAPIKey(t *testing.T) {
	keys := []APIKey{{ID: "k1", Name: "test key", Secret: "sk-test-123"}}
	handler := Auth(&mockTokenLookup{err: repository.ErrTokenNotFound}, keys)(newIdentityEchoHandler())

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	req.Header.Set("Authorization", "Bearer sk-wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc123", "abc123"},
		{"bearer xyz", "xyz"},
		{"BEARER token", "token"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got := extractBearerToken(r)
		if got != tt.want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
