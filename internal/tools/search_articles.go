package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lighthq/helpdesk-rag/internal/apperr"
	"github.com/lighthq/helpdesk-rag/internal/model"
)

// QueryEmbedder embeds a search query into the corpus' vector space.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher is the corpus store's similarity search capability.
type ChunkSearcher interface {
	SimilaritySearch(ctx context.Context, queryVec []float32, k int) ([]model.Chunk, []float64, error)
}

// MaxSearchResults bounds search_articles' max_results input.
const MaxSearchResults = 8

// MinSimilarity is σ_min, the floor below which a chunk is discarded
// (spec §4.3).
const MinSimilarity = 0.15

type searchArticlesArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResultView struct {
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SearchArticlesTool implements search_articles: embeds the query,
// runs similarity_search over k = 4*max_results candidates, filters
// below σ_min, groups by path keeping the best similarity, returns the
// top max_results.
type SearchArticlesTool struct {
	embedder QueryEmbedder
	store    ChunkSearcher
	minSim   float64
}

// NewSearchArticlesTool creates a SearchArticlesTool. minSim overrides
// MinSimilarity when positive (configuration's min_similarity).
func NewSearchArticlesTool(embedder QueryEmbedder, store ChunkSearcher, minSim float64) *SearchArticlesTool {
	if minSim <= 0 {
		minSim = MinSimilarity
	}
	return &SearchArticlesTool{embedder: embedder, store: store, minSim: minSim}
}

func (t *SearchArticlesTool) Name() string { return "search_articles" }
func (t *SearchArticlesTool) Description() string {
	return "Semantic search fallback over the help corpus when the hierarchy didn't surface a matching article. Returns up to max_results articles with similarity scores."
}
func (t *SearchArticlesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string"},
			"max_results": map[string]any{"type": "integer", "maximum": MaxSearchResults},
		},
		"required": []string{"query"},
	}
}

func (t *SearchArticlesTool) Execute(ctx context.Context, rawArgs json.RawMessage) (string, error) {
	var args searchArticlesArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return errJSON(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Query == "" {
		return errJSON("query must not be empty"), nil
	}
	maxResults := args.MaxResults
	if maxResults <= 0 || maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}

	vec, err := t.embedder.Embed(ctx, args.Query)
	if err != nil {
		ae := apperr.NewRetrievalFailed("search_articles: embedding failed", err)
		return errJSON(ae.Error()), nil
	}

	chunks, similarities, err := t.store.SimilaritySearch(ctx, vec, 4*maxResults)
	if err != nil {
		ae := apperr.NewRetrievalFailed("search_articles: corpus store unavailable", err)
		return errJSON(ae.Error()), nil
	}

	bestSim := make(map[string]float64)
	order := make([]string, 0)
	byPath := make(map[string][]model.Chunk)
	for i, c := range chunks {
		sim := similarities[i]
		if sim < t.minSim {
			continue
		}
		if _, ok := byPath[c.Path]; !ok {
			order = append(order, c.Path)
		}
		byPath[c.Path] = append(byPath[c.Path], c)
		if sim > bestSim[c.Path] {
			bestSim[c.Path] = sim
		}
	}

	flat := make([]model.Chunk, 0)
	for _, p := range order {
		flat = append(flat, byPath[p]...)
	}
	articles := model.GroupByPath(flat, bestSim)

	// Articles arrive already best-similarity-first because the
	// underlying similarity_search result is sorted descending and
	// `order` preserves first-seen order; re-sort defensively in case
	// a lower-similarity chunk of a path was seen first.
	for i := 1; i < len(articles); i++ {
		for j := i; j > 0 && articles[j].Similarity > articles[j-1].Similarity; j-- {
			articles[j], articles[j-1] = articles[j-1], articles[j]
		}
	}
	if len(articles) > maxResults {
		articles = articles[:maxResults]
	}

	views := make([]searchResultView, 0, len(articles))
	for _, a := range articles {
		views = append(views, searchResultView{Path: a.Path, Title: a.Title, Content: a.Content, Similarity: a.Similarity})
	}

	b, err := json.Marshal(views)
	if err != nil {
		return errJSON(fmt.Sprintf("encode result: %v", err)), nil
	}
	return string(b), nil
}
