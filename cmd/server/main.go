package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/lighthq/helpdesk-rag/internal/agent"
	"github.com/lighthq/helpdesk-rag/internal/config"
	"github.com/lighthq/helpdesk-rag/internal/convcache"
	"github.com/lighthq/helpdesk-rag/internal/escalation"
	"github.com/lighthq/helpdesk-rag/internal/gcpclient"
	"github.com/lighthq/helpdesk-rag/internal/handler"
	"github.com/lighthq/helpdesk-rag/internal/llm"
	"github.com/lighthq/helpdesk-rag/internal/manifest"
	"github.com/lighthq/helpdesk-rag/internal/middleware"
	"github.com/lighthq/helpdesk-rag/internal/notify"
	"github.com/lighthq/helpdesk-rag/internal/prompt"
	"github.com/lighthq/helpdesk-rag/internal/repository"
	"github.com/lighthq/helpdesk-rag/internal/router"
	"github.com/lighthq/helpdesk-rag/internal/synth"
	"github.com/lighthq/helpdesk-rag/internal/tools"
)

// Version is stamped into /health responses and startup logs.
const Version = "0.1.0"

func getPort(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return fmt.Sprintf("%d", cfg.Port)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	chunkRepo := repository.NewChunkRepo(pool)
	escalationRepo := repository.NewEscalationRepo(pool)
	authTokenRepo := repository.NewAuthTokenRepo(pool)
	feedbackRepo := repository.NewFeedbackRepo(pool)

	llmClient, err := llm.NewClient(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.ChatModel, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	defer llmClient.Close()

	manifestSource, err := buildManifestSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("manifest source: %w", err)
	}
	manifestCache := manifest.New(manifestSource, cfg.ManifestTTL)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCPProject)
	if err != nil {
		return fmt.Errorf("pubsub client: %w", err)
	}
	defer pubsubClient.Close()

	if cfg.ManifestTopicID != "" {
		invalidator := manifest.NewInvalidator(pubsubClient.Subscription(cfg.ManifestTopicID), manifestCache)
		go func() {
			if err := invalidator.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("manifest invalidator stopped", "error", err)
			}
		}()
	}

	var notifier *notify.Notifier
	if cfg.EscalationTopicID != "" {
		notifier = notify.NewNotifier(pubsubClient.Topic(cfg.EscalationTopicID))
	}
	escalationSvc := escalation.NewService(escalationRepo, notifier)

	registry := tools.NewRegistry().Register(
		tools.NewKnowledgeBaseTool(manifestCache),
		tools.NewFetchArticlesTool(chunkRepo, cfg.MaxFetchPaths),
		tools.NewSearchArticlesTool(llmClient, chunkRepo, cfg.MinSimilarity),
		tools.NewEscalateTool(),
	)
	dispatcher := tools.NewDispatcher(registry)

	loop := agent.NewLoop(registry, dispatcher, llmClient, prompt.AgentSystemPrompt, cfg.MaxTurns)
	synthesizer := synth.NewSynthesizer(llmClient, prompt.FinalSystemPrompt)

	convCache, err := buildConvCache(cfg)
	if err != nil {
		return fmt.Errorf("conversation cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
	})
	defer rateLimiter.Stop()

	apiKeys := make([]middleware.APIKey, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		apiKeys = append(apiKeys, middleware.APIKey{ID: k.ID, Name: k.Name, Secret: k.Secret})
	}

	mux := router.New(&router.Dependencies{
		DB:         pool,
		Version:    Version,
		Metrics:    metrics,
		MetricsReg: reg,

		AllowedOrigins: cfg.AllowedOrigins,
		Tokens:         authTokenRepo,
		APIKeys:        apiKeys,
		RateLimiter:    rateLimiter,
		RequestTimeout: cfg.RequestTimeout,
		Feedback:       feedbackRepo,

		AskDeps: handler.AskDeps{
			Loop:            loop,
			Synth:           synthesizer,
			Escalations:     escalationSvc,
			ConvCache:       convCache,
			Metrics:         metrics,
			PipelineVersion: fmt.Sprintf("%s/%s/%s", prompt.Version, cfg.ChatModel, cfg.EmbeddingModel),
			Mode:            "standard",
		},
	})

	srv := &http.Server{
		Addr:         ":" + getPort(cfg),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("helpdesk-rag starting", "version", Version, "port", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildManifestSource selects the HTTP or GCS transport per
// cfg.ManifestSourceURL's scheme. A blank URL falls back to an
// HTTPSource over an empty URL whose every fetch fails, so the
// manifest cache serves an empty hierarchy string until configured —
// acceptable for local development without a manifest source.
func buildManifestSource(ctx context.Context, cfg *config.Config) (manifest.Source, error) {
	var downloader *gcpclient.StorageAdapter
	if cfg.ManifestSourceURL != "" {
		var err error
		downloader, err = gcpclient.NewStorageAdapter(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage adapter: %w", err)
		}
	}
	return manifest.NewSource(cfg.ManifestSourceURL, http.DefaultClient, downloader)
}

// buildConvCache selects the in-memory or Redis conversation-cache
// backend per cfg.ConversationCacheBackend.
func buildConvCache(cfg *config.Config) (convcache.Cache, error) {
	if cfg.ConversationCacheBackend != "redis" {
		return convcache.NewMemCache(cfg.ConversationCacheTTL), nil
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("conversation_cache_backend=redis requires REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return convcache.NewRedisCache(client, cfg.ConversationCacheTTL), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
