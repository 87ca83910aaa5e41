package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lighthq/helpdesk-rag/internal/apperr"
)

// RateLimiterConfig holds configuration for the sliding window rate limiter.
type RateLimiterConfig struct {
	// MaxRequests is the maximum number of requests allowed within the window.
	MaxRequests int
	// Window is the sliding window duration.
	Window time.Duration
	// CleanupInterval is how often stale entries are purged. Defaults to 5 minutes.
	CleanupInterval time.Duration
}

// userWindow tracks request timestamps for a single identity within the sliding window.
type userWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter implements a per-identity sliding window rate limiter using only stdlib.
type RateLimiter struct {
	config  RateLimiterConfig
	windows sync.Map // map[string]*userWindow
	nowFunc func() time.Time
	stopCh  chan struct{}
}

// NewRateLimiter creates a new rate limiter and starts a background cleanup goroutine.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:  config,
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()
	return rl
}

// Stop halts the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// cleanup periodically removes stale identity entries whose timestamps have all expired.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			now := rl.nowFunc()
			cutoff := now.Add(-rl.config.Window)
			rl.windows.Range(func(key, value interface{}) bool {
				uw := value.(*userWindow)
				uw.mu.Lock()
				uw.timestamps = pruneExpired(uw.timestamps, cutoff)
				empty := len(uw.timestamps) == 0
				uw.mu.Unlock()
				if empty {
					rl.windows.Delete(key)
				}
				return true
			})
		}
	}
}

// decision is the outcome of one Allow call, carrying everything the
// X-RateLimit-* response headers need (spec §4.8).
type decision struct {
	allowed    bool
	limit      int
	remaining  int
	resetSecs  int
	retryAfter int
}

// Allow checks whether key is within the rate limit and reports the
// limit/remaining/reset values for the response headers.
func (rl *RateLimiter) Allow(key string) decision {
	now := rl.nowFunc()
	cutoff := now.Add(-rl.config.Window)

	val, _ := rl.windows.LoadOrStore(key, &userWindow{})
	uw := val.(*userWindow)

	uw.mu.Lock()
	defer uw.mu.Unlock()

	uw.timestamps = pruneExpired(uw.timestamps, cutoff)

	resetSecs := int(rl.config.Window.Seconds())
	if len(uw.timestamps) > 0 {
		resetSecs = int(uw.timestamps[0].Add(rl.config.Window).Sub(now).Seconds()) + 1
	}

	if len(uw.timestamps) >= rl.config.MaxRequests {
		oldest := uw.timestamps[0]
		retryAfter := int(oldest.Add(rl.config.Window).Sub(now).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		return decision{allowed: false, limit: rl.config.MaxRequests, remaining: 0, resetSecs: retryAfter, retryAfter: retryAfter}
	}

	uw.timestamps = append(uw.timestamps, now)
	remaining := rl.config.MaxRequests - len(uw.timestamps)
	return decision{allowed: true, limit: rl.config.MaxRequests, remaining: remaining, resetSecs: resetSecs}
}

// pruneExpired removes timestamps that are before the cutoff.
func pruneExpired(timestamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range timestamps {
		if !t.Before(cutoff) {
			timestamps[idx] = t
			idx++
		}
	}
	return timestamps[:idx]
}

// RateLimit returns middleware enforcing a per-identity sliding window
// (identity = key_id from Auth, falling back to the client address),
// and sets X-RateLimit-Limit/-Remaining/-Reset on every response.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if id, ok := IdentityFromContext(r.Context()); ok && id.KeyID != "" {
				key = id.KeyID
			}

			d := rl.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(d.resetSecs))

			if !d.allowed {
				w.Header().Set("Retry-After", strconv.Itoa(d.retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(apperr.StatusCode(apperr.CodeRateLimitExceeded))
				json.NewEncoder(w).Encode(map[string]any{
					"error":   apperr.CodeRateLimitExceeded,
					"message": "rate limit exceeded",
					"details": map[string]string{"retry_after": strconv.Itoa(d.retryAfter)},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
