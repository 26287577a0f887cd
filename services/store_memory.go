package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docuquery/rag/models"
)

// MemoryVectorStore is a brute-force cosine-similarity store. All mutation
// happens under one write lock, so readers observe each document's chunk set
// all-or-nothing. It backs the tests and the VECTOR_STORE=memory deployment
// option.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	records   []models.ChunkRecord
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

// Replace implements VectorStore. The delete and insert happen under a single
// critical section, which is what makes the swap atomic to concurrent readers.
func (s *MemoryVectorStore) Replace(ctx context.Context, filename string, records []models.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if s.dimension == 0 {
			s.dimension = len(rec.Embedding)
		}
		if len(rec.Embedding) != s.dimension {
			return newPipelineError(ErrKindEmbeddingDimensionMismatch,
				fmt.Sprintf("chunk %s has dimension %d, store holds %d", rec.ID, len(rec.Embedding), s.dimension), nil)
		}
	}

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.SourceFilename != filename {
			kept = append(kept, rec)
		}
	}
	s.records = append(kept, records...)
	return nil
}

// Delete implements VectorStore.
func (s *MemoryVectorStore) Delete(ctx context.Context, filename string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	deleted := 0
	for _, rec := range s.records {
		if rec.SourceFilename == filename {
			deleted++
		} else {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	return deleted, nil
}

// ListFilenames implements VectorStore.
func (s *MemoryVectorStore) ListFilenames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var filenames []string
	for _, rec := range s.records {
		if !seen[rec.SourceFilename] {
			seen[rec.SourceFilename] = true
			filenames = append(filenames, rec.SourceFilename)
		}
	}
	sort.Strings(filenames)
	return filenames, nil
}

// SimilaritySearch implements VectorStore. The stable sort keeps insertion
// order for equal scores, which makes rankings deterministic.
func (s *MemoryVectorStore) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dimension {
		return nil, newPipelineError(ErrKindEmbeddingDimensionMismatch,
			fmt.Sprintf("query embedding has dimension %d, store holds %d", len(embedding), s.dimension), nil)
	}

	scored := make([]models.ScoredChunk, 0, len(s.records))
	for _, rec := range s.records {
		scored = append(scored, models.ScoredChunk{Record: rec, Score: cosineSimilarity(embedding, rec.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < 0 {
		k = 0
	}
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
