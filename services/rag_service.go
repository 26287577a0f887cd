package services

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/docuquery/rag/models"
)

// QueryState is the terminal state of one query pass.
type QueryState string

const (
	QueryCompleted QueryState = "completed"
	QueryFailed    QueryState = "failed"
)

// FailReason names the stage whose collaborator was unavailable.
type FailReason string

const (
	FailRetrievalUnavailable  FailReason = "retrieval_unavailable"
	FailGenerationUnavailable FailReason = "generation_unavailable"
)

// QueryResult is the tagged outcome of the query pipeline. Callers must
// branch on State instead of relying on errors as control flow: a query over
// an empty store completes with an empty source set, it does not fail.
type QueryResult struct {
	State   QueryState
	Answer  string
	Sources []string
	Reason  FailReason
	Err     error
}

// RAGService interface defines the query side of the pipeline: a question in,
// a completed answer with source attribution (or an explicit failure) out.
type RAGService interface {
	Query(ctx context.Context, question string) (QueryResult, error)
}

// ragServiceImpl holds the dependencies it needs to do its job.
type ragServiceImpl struct {
	embedder        Embedder
	generator       Generator
	store           VectorStore
	topK            int
	maxContextChars int
}

// NewRAGService creates a new query pipeline instance. topK bounds the number
// of retrieved chunks; maxContextChars bounds the assembled prompt context.
func NewRAGService(embedder Embedder, generator Generator, store VectorStore, topK, maxContextChars int) RAGService {
	return &ragServiceImpl{
		embedder:        embedder,
		generator:       generator,
		store:           store,
		topK:            topK,
		maxContextChars: maxContextChars,
	}
}

// Query runs the single-pass state machine: retrieve, assemble, generate,
// attribute. Unavailable collaborators surface as a Failed result; the only
// error return is an embedding dimension mismatch, which is a configuration
// defect rather than a per-query condition and must fail fast.
func (r *ragServiceImpl) Query(ctx context.Context, question string) (QueryResult, error) {
	requestID := uuid.New().String()
	log.Printf("[%s] QUERY: %q", requestID, question)

	// Retrieve
	queryEmbedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		log.Printf("[%s] QUERY: failed to embed question: %v", requestID, err)
		return failedResult(FailRetrievalUnavailable,
			newPipelineError(ErrKindRetrievalUnavailable, "failed to embed question", err)), nil
	}

	retrieved, err := r.store.SimilaritySearch(ctx, queryEmbedding, r.topK)
	if err != nil {
		if KindOf(err) == ErrKindEmbeddingDimensionMismatch {
			return QueryResult{State: QueryFailed, Err: err}, err
		}
		log.Printf("[%s] QUERY: similarity search failed: %v", requestID, err)
		return failedResult(FailRetrievalUnavailable,
			newPipelineError(ErrKindRetrievalUnavailable, "vector store unavailable", err)), nil
	}
	log.Printf("[%s] QUERY: retrieved %d chunks", requestID, len(retrieved))

	// Assemble
	prompt, included := r.assemblePrompt(question, retrieved)
	if len(included) == 0 {
		log.Printf("[%s] QUERY: no usable context, answering from general knowledge", requestID)
	}

	// Generate
	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("[%s] QUERY: generation failed: %v", requestID, err)
		return failedResult(FailGenerationUnavailable,
			newPipelineError(ErrKindGenerationUnavailable, "llm unavailable", err)), nil
	}

	// Attribute: only the chunks that made it into the prompt count.
	var sources []string
	seen := make(map[string]bool)
	for _, rec := range included {
		if !seen[rec.SourceFilename] {
			seen[rec.SourceFilename] = true
			sources = append(sources, rec.SourceFilename)
		}
	}

	log.Printf("[%s] QUERY: completed with %d sources", requestID, len(sources))
	return QueryResult{State: QueryCompleted, Answer: answer, Sources: sources}, nil
}

// assemblePrompt builds the bounded prompt from the retrieval result in
// ranked order, skipping near-identical chunk texts and stopping at the
// context budget. The top chunk always gets in, truncated to the budget when
// it alone exceeds it, so the prompt never grows past maxContextChars. It
// returns the chunks actually included so attribution reflects the prompt,
// not the full retrieval result. An empty retrieval yields the explicit
// no-context prompt: the generator answers from general knowledge and the
// answer carries no sources.
func (r *ragServiceImpl) assemblePrompt(question string, retrieved []models.ScoredChunk) (string, []models.ChunkRecord) {
	var included []models.ChunkRecord
	seen := make(map[string]bool)
	var contextBuilder strings.Builder
	total := 0

	for _, sc := range retrieved {
		normalized := strings.Join(strings.Fields(sc.Record.Text), " ")
		if normalized == "" || seen[normalized] {
			continue
		}
		text := sc.Record.Text
		if len(included) == 0 && len(text) > r.maxContextChars {
			text = truncateAtRune(text, r.maxContextChars)
			if text == "" {
				break
			}
		}
		if len(included) > 0 && total+len(text) > r.maxContextChars {
			break
		}
		seen[normalized] = true
		if len(included) > 0 {
			contextBuilder.WriteString("\n\n")
		}
		contextBuilder.WriteString(text)
		total += len(text)
		included = append(included, sc.Record)
	}

	if len(included) == 0 {
		return noContextPrompt(question), nil
	}
	return groundedPrompt(question, contextBuilder.String()), included
}

func failedResult(reason FailReason, err error) QueryResult {
	return QueryResult{State: QueryFailed, Reason: reason, Err: err}
}

// truncateAtRune cuts s to at most max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
