package middleware

import (
	"net/http"
	"time"
)

// Timeout wraps a handler with an http.TimeoutHandler that bounds the
// whole request. When the deadline fires, the client receives a 503
// with a fixed JSON body and the handler's context is cancelled;
// whatever the handler produces after that is discarded, and no
// synthesis runs on evidence collected before the deadline. The
// router applies it to /ask and /feedback, both single blocking JSON
// responses, never a stream; /health and /metrics are not wrapped.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"error":"request timeout"}`)
	}
}
