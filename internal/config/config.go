// Package config loads service configuration from environment
// variables. Required variables cause Load to fail fast at startup
// with a structured, multi-field error; optional variables fall back
// to documented defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// APIKey is one statically configured bearer credential.
type APIKey struct {
	ID     string
	Name   string
	Secret string
}

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load returns.
type Config struct {
	Port        int
	Environment string

	// store_connection
	DatabaseURL      string
	DatabaseMaxConns int

	// lm_credentials
	GCPProject          string
	VertexAILocation    string
	ChatModel           string
	EmbeddingLocation   string
	EmbeddingModel      string
	EmbeddingDimensions int

	MinSimilarity     float64
	MaxTurns          int
	MaxFetchPaths     int
	ManifestTTL       time.Duration
	ManifestSourceURL string
	ManifestTopicID   string

	ConversationCacheTTL     time.Duration
	ConversationCacheBackend string // "memory" | "redis"
	RedisAddr                string

	RateLimitWindow time.Duration
	RateLimitMax    int

	AllowedOrigins []string
	APIKeys        []APIKey

	EscalationTopicID string

	RequestTimeout time.Duration
}

// Load reads configuration from environment variables. DATABASE_URL
// (store_connection) and GOOGLE_CLOUD_PROJECT (lm_credentials) are
// required; Load collects every missing required field into a single
// error instead of failing on the first one, so an operator sees the
// full list of what to set.
func Load() (*Config, error) {
	var missing []string

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		missing = append(missing, "DATABASE_URL (store_connection)")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		missing = append(missing, "GOOGLE_CLOUD_PROJECT (lm_credentials)")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("config.Load: missing required settings: %s", strings.Join(missing, ", "))
	}

	region := envStr("GCP_REGION", "us-east4")
	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		GCPProject:          gcpProject,
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		ChatModel:           envStr("CHAT_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", region),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),

		MinSimilarity:     envFloat("MIN_SIMILARITY", 0.15),
		MaxTurns:          envInt("MAX_TURNS", 8),
		MaxFetchPaths:     envInt("MAX_FETCH_PATHS", 15),
		ManifestTTL:       envDuration("MANIFEST_TTL", 5*time.Minute),
		ManifestSourceURL: envStr("MANIFEST_SOURCE_URL", ""),
		ManifestTopicID:   envStr("MANIFEST_INVALIDATION_TOPIC", ""),

		ConversationCacheTTL:     envDuration("CONVERSATION_CACHE_TTL", 24*time.Hour),
		ConversationCacheBackend: envStr("CONVERSATION_CACHE_BACKEND", "memory"),
		RedisAddr:                envStr("REDIS_ADDR", ""),

		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 30),

		AllowedOrigins: envList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		APIKeys:        envAPIKeys("API_KEYS"),

		EscalationTopicID: envStr("ESCALATION_TOPIC", ""),

		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList parses a comma-separated list, trimming whitespace around
// each entry and dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// envAPIKeys parses API_KEYS as "id:name:secret" tuples separated by
// commas. Malformed entries are skipped.
func envAPIKeys(key string) []APIKey {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var keys []APIKey
	for _, entry := range strings.Split(v, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			continue
		}
		keys = append(keys, APIKey{ID: parts[0], Name: parts[1], Secret: parts[2]})
	}
	return keys
}
