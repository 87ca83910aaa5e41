// Package model holds the plain data types shared across the
// pipeline: chunks and articles read from the corpus store, the
// escalation draft and feedback record the surface writes, and the
// grounded answer returned to callers.
package model

import "time"

// ChunkMetadata is the deterministic-default-filled metadata record
// carried by every chunk, pinning the retrieval program version used
// to produce it.
type ChunkMetadata struct {
	RepoSlug               string `json:"repo_slug"`
	CommitSHA              string `json:"commit_sha"`
	IndexedAt              time.Time `json:"indexed_at"`
	IndexRunID             string `json:"index_run_id"`
	RetrievalProgramVersion string `json:"retrieval_program_version"`
}

// DefaultChunkMetadata fills a zero-value ChunkMetadata with
// deterministic defaults for any field the store left empty.
func DefaultChunkMetadata(m ChunkMetadata) ChunkMetadata {
	if m.RepoSlug == "" {
		m.RepoSlug = "unknown"
	}
	if m.CommitSHA == "" {
		m.CommitSHA = "unknown"
	}
	if m.IndexRunID == "" {
		m.IndexRunID = "unknown"
	}
	if m.RetrievalProgramVersion == "" {
		m.RetrievalProgramVersion = "unknown"
	}
	if m.IndexedAt.IsZero() {
		m.IndexedAt = time.Unix(0, 0).UTC()
	}
	return m
}

// Chunk is the atomic retrieval unit of the corpus. Path is the
// grouping key: an Article is the ordered concatenation of all chunks
// sharing the same Path.
type Chunk struct {
	ID         string
	Path       string
	Section    string
	Title      string
	Body       string
	ChunkIndex int
	Embedding  []float32
	Metadata   ChunkMetadata
}

// Article is the logical document obtained by grouping chunks by
// path. Similarity is 1.0 for a direct fetch, or the best similarity
// score among the path's chunks in a search result.
type Article struct {
	Path       string
	Title      string
	Content    string
	Similarity float64
	Metadata   ChunkMetadata
}

// GroupByPath reconstructs Articles from a flat chunk list, preserving
// the caller-supplied per-path chunk order and concatenating bodies in
// that order. similarity, when non-nil, supplies the best similarity
// seen per path; articles not present default to 1.0 (direct fetch).
func GroupByPath(chunks []Chunk, similarity map[string]float64) []Article {
	order := make([]string, 0)
	byPath := make(map[string][]Chunk)
	for _, c := range chunks {
		if _, ok := byPath[c.Path]; !ok {
			order = append(order, c.Path)
		}
		byPath[c.Path] = append(byPath[c.Path], c)
	}

	articles := make([]Article, 0, len(order))
	for _, path := range order {
		group := byPath[path]
		content := ""
		title := ""
		meta := group[0].Metadata
		for i, c := range group {
			if title == "" && c.Title != "" {
				title = c.Title
			}
			if i > 0 {
				content += "\n\n"
			}
			content += c.Body
		}
		sim := 1.0
		if similarity != nil {
			if s, ok := similarity[path]; ok {
				sim = s
			}
		}
		articles = append(articles, Article{
			Path:       path,
			Title:      title,
			Content:    content,
			Similarity: sim,
			Metadata:   meta,
		})
	}
	return articles
}
