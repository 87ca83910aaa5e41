package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lighthq/helpdesk-rag/internal/apperr"
	"github.com/lighthq/helpdesk-rag/internal/model"
	"github.com/lighthq/helpdesk-rag/internal/urlrewrite"
)

// ChunkFetcher is the corpus store capability fetch_articles needs.
type ChunkFetcher interface {
	FetchByPaths(ctx context.Context, paths []string) ([]model.Chunk, error)
}

// MaxFetchPaths bounds how many paths a single fetch_articles call
// may request, per spec §4.3.
const MaxFetchPaths = 15

// articleView is the wire shape returned to the LM per fetched article.
type articleView struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type fetchArticlesArgs struct {
	Paths []string `json:"paths"`
}

// FetchArticlesTool implements fetch_articles: maps each URL to a
// corpus path, fetches chunks, groups into articles, returns JSON.
// The LM is instructed to call this exactly once per request with
// the union of desired paths (spec §4.4); the handler itself does not
// reject repeat calls — it just fetches whatever it's given.
type FetchArticlesTool struct {
	store    ChunkFetcher
	maxPaths int
}

// NewFetchArticlesTool creates a FetchArticlesTool.
func NewFetchArticlesTool(store ChunkFetcher, maxPaths int) *FetchArticlesTool {
	if maxPaths <= 0 {
		maxPaths = MaxFetchPaths
	}
	return &FetchArticlesTool{store: store, maxPaths: maxPaths}
}

func (t *FetchArticlesTool) Name() string { return "fetch_articles" }
func (t *FetchArticlesTool) Description() string {
	return "Fetches the full content of one or more help articles given their URLs, up to 15 at a time. Call once with the union of every URL you need."
}
func (t *FetchArticlesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"paths": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"maxItems": t.maxPaths,
			},
		},
		"required": []string{"paths"},
	}
}

func (t *FetchArticlesTool) Execute(ctx context.Context, rawArgs json.RawMessage) (string, error) {
	var args fetchArticlesArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return errJSON(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if len(args.Paths) == 0 {
		return errJSON("paths must contain at least one URL"), nil
	}
	if len(args.Paths) > t.maxPaths {
		args.Paths = args.Paths[:t.maxPaths]
	}

	paths := urlrewrite.ToPaths(args.Paths)
	chunks, err := t.store.FetchByPaths(ctx, paths)
	if err != nil {
		ae := apperr.NewRetrievalFailed("fetch_articles: corpus store unavailable", err)
		return errJSON(ae.Error()), nil
	}

	articles := model.GroupByPath(chunks, nil)
	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView{Path: a.Path, Title: a.Title, Content: a.Content})
	}

	b, err := json.Marshal(views)
	if err != nil {
		return errJSON(fmt.Sprintf("encode result: %v", err)), nil
	}
	return string(b), nil
}
