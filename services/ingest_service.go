package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/docuquery/rag/models"
)

// IngestResult reports the outcome of ingesting one document. Failing
// documents never abort their siblings, so a multi-file upload yields one
// result per file.
type IngestResult struct {
	Filename   string
	ChunkCount int
	Err        error
}

// IngestionService interface defines the ingestion side of the pipeline:
// document bytes in, chunk records in the vector store out, plus the
// delete and listing operations that manage stored documents.
type IngestionService interface {
	IngestFile(ctx context.Context, filename string, data []byte) (int, error)
	IngestFiles(ctx context.Context, files []models.UploadedFile) []IngestResult
	DeleteDocument(ctx context.Context, filename string) (int, error)
	ListDocuments(ctx context.Context) ([]string, error)
}

// ingestionServiceImpl holds the dependencies it needs to do its job.
type ingestionServiceImpl struct {
	chunker  *Chunker
	embedder Embedder
	store    VectorStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIngestionService creates a new ingestion service instance.
func NewIngestionService(chunker *Chunker, embedder Embedder, store VectorStore) IngestionService {
	return &ingestionServiceImpl{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		locks:    make(map[string]*sync.Mutex),
	}
}

// IngestFile runs the full ingestion pipeline for one document: extract,
// chunk, embed, then atomically replace the stored chunk set. Nothing is
// written until every chunk has an embedding, so an embedding failure leaves
// no partial chunk set behind. Returns the number of chunks written; zero
// for an empty document, which is reported rather than treated as an error.
// An empty document still replaces the prior chunk set, so rewriting a file
// to empty leaves no stale chunks behind.
func (s *ingestionServiceImpl) IngestFile(ctx context.Context, filename string, data []byte) (int, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return 0, err
	}

	records, err := s.chunker.ChunkDocument(filename, text)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		log.Printf("INGEST: document %s produced no chunks (empty document)", filename)
		lock := s.filenameLock(filename)
		lock.Lock()
		defer lock.Unlock()
		if err := s.store.Replace(ctx, filename, nil); err != nil {
			return 0, fmt.Errorf("failed to clear chunks of %s: %w", filename, err)
		}
		return 0, nil
	}
	log.Printf("INGEST: split %s into %d chunks", filename, len(records))

	for i := range records {
		vec, err := s.embedder.Embed(ctx, records[i].Text)
		if err != nil {
			return 0, fmt.Errorf("could not embed chunk %d of %s: %w", i, filename, err)
		}
		records[i].Embedding = vec
	}

	// Same-filename replaces must serialize: last writer wins on the whole
	// chunk set, never an interleaved merge.
	lock := s.filenameLock(filename)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Replace(ctx, filename, records); err != nil {
		return 0, fmt.Errorf("failed to write chunks of %s: %w", filename, err)
	}
	log.Printf("INGEST: stored %d chunks for %s", len(records), filename)
	return len(records), nil
}

// IngestFiles ingests each uploaded file independently and reports one
// outcome per file.
func (s *ingestionServiceImpl) IngestFiles(ctx context.Context, files []models.UploadedFile) []IngestResult {
	results := make([]IngestResult, 0, len(files))
	for _, f := range files {
		count, err := s.IngestFile(ctx, f.Filename, f.Data)
		if err != nil {
			log.Printf("INGEST ERROR: failed to process %s: %v", f.Filename, err)
		}
		results = append(results, IngestResult{Filename: f.Filename, ChunkCount: count, Err: err})
	}
	return results
}

// DeleteDocument removes every chunk belonging to filename. Deleting a
// filename that was never ingested is a not-found error.
func (s *ingestionServiceImpl) DeleteDocument(ctx context.Context, filename string) (int, error) {
	lock := s.filenameLock(filename)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.store.Delete(ctx, filename)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of %s: %w", filename, err)
	}
	if count == 0 {
		return 0, newPipelineError(ErrKindDocumentNotFound,
			fmt.Sprintf("document %q not found", filename), nil)
	}
	log.Printf("INGEST: deleted %d chunks for %s", count, filename)
	return count, nil
}

// ListDocuments returns the distinct source filenames currently stored.
func (s *ingestionServiceImpl) ListDocuments(ctx context.Context) ([]string, error) {
	return s.store.ListFilenames(ctx)
}

func (s *ingestionServiceImpl) filenameLock(filename string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[filename]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[filename] = lock
	}
	return lock
}
