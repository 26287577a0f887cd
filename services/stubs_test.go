package services

import (
	"context"
	"errors"

	"github.com/docuquery/rag/models"
)

// stubEmbedder produces a deterministic 4-dimensional vector from rune
// counts: length, vowels, consonants, spaces. Deterministic by construction,
// which is what the ingestion determinism tests rely on.
type stubEmbedder struct {
	fail bool
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, newPipelineError(ErrKindEmbeddingUnavailable, "embedding backend is down", errors.New("connection refused"))
	}
	var length, vowels, consonants, spaces float32
	for _, r := range text {
		length++
		switch {
		case r == 'a' || r == 'e' || r == 'i' || r == 'o' || r == 'u' ||
			r == 'A' || r == 'E' || r == 'I' || r == 'O' || r == 'U':
			vowels++
		case r == ' ':
			spaces++
		default:
			consonants++
		}
	}
	return []float32{length, vowels, consonants, spaces}, nil
}

func (e *stubEmbedder) Dimensions() int   { return 4 }
func (e *stubEmbedder) ModelName() string { return "stub-embed-v1" }

// stubGenerator returns a canned answer and records the prompt it was given.
type stubGenerator struct {
	answer string
	fail   bool

	lastPrompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.lastPrompt = prompt
	if g.fail {
		return "", newPipelineError(ErrKindGenerationUnavailable, "llm backend is down", errors.New("deadline exceeded"))
	}
	return g.answer, nil
}

// failingStore simulates an unreachable vector store.
type failingStore struct{}

func (failingStore) Replace(context.Context, string, []models.ChunkRecord) error {
	return errors.New("store unreachable")
}

func (failingStore) Delete(context.Context, string) (int, error) {
	return 0, errors.New("store unreachable")
}

func (failingStore) ListFilenames(context.Context) ([]string, error) {
	return nil, errors.New("store unreachable")
}

func (failingStore) SimilaritySearch(context.Context, []float32, int) ([]models.ScoredChunk, error) {
	return nil, errors.New("store unreachable")
}
