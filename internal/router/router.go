package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lighthq/helpdesk-rag/internal/handler"
	"github.com/lighthq/helpdesk-rag/internal/middleware"
)

// Dependencies holds every service the router wires into routes,
// pared down from the teacher's much larger Dependencies struct to
// this spec's two-endpoint surface (§6): no document/folder/
// privilege/audit/export/forge/ingest/transcribe services belong here.
type Dependencies struct {
	DB         handler.DBPinger
	Version    string
	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	AllowedOrigins []string

	Tokens  middleware.DBTokenLookup
	APIKeys []middleware.APIKey

	RateLimiter *middleware.RateLimiter

	AskDeps        handler.AskDeps
	RequestTimeout time.Duration
	Feedback       handler.FeedbackRecorder
}

// New creates and configures the Chi router: global middleware stack,
// then a public /health route and a protected /ask route, grounded on
// the teacher's middleware-stack-then-route-groups structure in its
// own router.go.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens, deps.APIKeys))
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimit(deps.RateLimiter))
		}
		timeout := deps.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		r.With(middleware.Timeout(timeout)).Post("/ask", handler.Ask(deps.AskDeps))
		if deps.Feedback != nil {
			r.With(middleware.Timeout(timeout)).Post("/feedback", handler.Feedback(deps.Feedback))
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_found",
			"message": "route not found",
		})
	})

	return r
}
