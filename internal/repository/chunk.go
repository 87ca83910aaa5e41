package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/lighthq/helpdesk-rag/internal/model"
)

// ChunkRepo implements the corpus store's two consumed operations:
// fetch_by_paths and similarity_search (spec §4.1). Chunks are
// written by the external indexer; this repo only reads.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// FetchByPaths returns every chunk whose path equals any requested
// path, in stable per-path chunk order, sufficient to deterministically
// reconstruct article content via model.GroupByPath.
func (r *ChunkRepo) FetchByPaths(ctx context.Context, paths []string) ([]model.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, path, section, title, body, chunk_index,
			repo_slug, commit_sha, indexed_at, index_run_id, retrieval_program_version
		FROM article_chunks
		WHERE path = ANY($1)
		ORDER BY path, chunk_index`, paths)
	if err != nil {
		return nil, fmt.Errorf("repository.FetchByPaths: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SimilaritySearch finds the top-K chunks most similar to queryVec
// using cosine similarity, sorted descending. The core does not
// re-rank results returned here.
func (r *ChunkRepo) SimilaritySearch(ctx context.Context, queryVec []float32, k int) ([]model.Chunk, []float64, error) {
	embedding := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT id, path, section, title, body, chunk_index,
			repo_slug, commit_sha, indexed_at, index_run_id, retrieval_program_version,
			1 - (embedding <=> $1::vector) AS similarity
		FROM article_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, embedding, k)
	if err != nil {
		slog.Error("repository.SimilaritySearch query failed", "error", err)
		return nil, nil, fmt.Errorf("repository.SimilaritySearch: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	var similarities []float64
	for rows.Next() {
		var c model.Chunk
		var sim float64
		if err := rows.Scan(
			&c.ID, &c.Path, &c.Section, &c.Title, &c.Body, &c.ChunkIndex,
			&c.Metadata.RepoSlug, &c.Metadata.CommitSHA, &c.Metadata.IndexedAt,
			&c.Metadata.IndexRunID, &c.Metadata.RetrievalProgramVersion, &sim,
		); err != nil {
			return nil, nil, fmt.Errorf("repository.SimilaritySearch: scan: %w", err)
		}
		c.Metadata = model.DefaultChunkMetadata(c.Metadata)
		chunks = append(chunks, c)
		similarities = append(similarities, sim)
	}
	return chunks, similarities, nil
}

func scanChunks(rows interface {
	Next() bool
	Scan(...any) error
}) ([]model.Chunk, error) {
	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(
			&c.ID, &c.Path, &c.Section, &c.Title, &c.Body, &c.ChunkIndex,
			&c.Metadata.RepoSlug, &c.Metadata.CommitSHA, &c.Metadata.IndexedAt,
			&c.Metadata.IndexRunID, &c.Metadata.RetrievalProgramVersion,
		); err != nil {
			return nil, fmt.Errorf("repository.scanChunks: %w", err)
		}
		c.Metadata = model.DefaultChunkMetadata(c.Metadata)
		chunks = append(chunks, c)
	}
	return chunks, nil
}
