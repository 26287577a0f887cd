package services

import (
	"context"

	"github.com/docuquery/rag/models"
)

// VectorStore is the persistence contract shared by both pipelines. It
// exclusively owns persisted chunk/embedding pairs; the query pipeline only
// reads.
//
// Every operation is atomic per call: a concurrent reader sees the chunk set
// of a document either entirely before or entirely after a Replace or Delete,
// never half-written.
type VectorStore interface {
	// Replace atomically swaps the stored chunk set for filename with the
	// given records. Ingesting a filename that already exists therefore
	// never leaves duplicate or orphaned chunks behind.
	Replace(ctx context.Context, filename string, records []models.ChunkRecord) error

	// Delete removes every chunk whose source filename matches, returning
	// how many were removed. It removes all matching chunks or none.
	Delete(ctx context.Context, filename string) (int, error)

	// ListFilenames returns the distinct source filenames currently stored,
	// sorted, independent of chunk count per document.
	ListFilenames(ctx context.Context) ([]string, error)

	// SimilaritySearch returns at most k chunks ranked by descending
	// similarity to the query embedding, ties broken by insertion order.
	// An empty store yields an empty result, not an error.
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
}
