package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/docuquery/rag/models"
)

// Metadata attribute keys attached to every stored chunk.
const (
	metaSourceFilename = "source_filename"
	metaSequenceIndex  = "sequence_index"
)

// ChromaVectorStore persists chunk records in a ChromaDB collection using the
// v2 API. Chroma applies each Add/Delete call atomically, which gives the
// per-call guarantees the VectorStore contract asks for; the ingestion
// service serializes same-filename replaces on top of that.
type ChromaVectorStore struct {
	collection chromago.Collection
}

func NewChromaVectorStore(collection chromago.Collection) *ChromaVectorStore {
	return &ChromaVectorStore{collection: collection}
}

// Replace implements VectorStore as delete-then-write against the collection.
// All records go into one Add call: Chroma applies each call atomically, so a
// reader between the delete and the add sees an empty document, never a
// half-written chunk set.
func (s *ChromaVectorStore) Replace(ctx context.Context, filename string, records []models.ChunkRecord) error {
	where := chromago.EqString(metaSourceFilename, filename)
	if err := s.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete prior chunks of %s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, 0, len(records))
	texts := make([]string, 0, len(records))
	vectors := make([]embeddings.Embedding, 0, len(records))
	metadatas := make([]chromago.DocumentMetadata, 0, len(records))
	for _, rec := range records {
		ids = append(ids, chromago.DocumentID(rec.ID))
		texts = append(texts, rec.Text)
		vectors = append(vectors, embeddings.NewEmbeddingFromFloat32(rec.Embedding))
		metadatas = append(metadatas, chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(metaSourceFilename, rec.SourceFilename),
			chromago.NewIntAttribute(metaSequenceIndex, int64(rec.SequenceIndex)),
		))
	}

	err := s.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d chunks of %s to chromadb: %w", len(records), filename, err)
	}
	return nil
}

// Delete implements VectorStore. Chroma's delete does not report a count, so
// the matching chunks are counted first; the where-filtered delete itself is
// a single atomic call.
func (s *ChromaVectorStore) Delete(ctx context.Context, filename string) (int, error) {
	count, err := s.countByFilename(ctx, filename)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	where := chromago.EqString(metaSourceFilename, filename)
	if err := s.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return 0, fmt.Errorf("failed to delete chunks of %s: %w", filename, err)
	}
	return count, nil
}

// ListFilenames implements VectorStore.
func (s *ChromaVectorStore) ListFilenames(ctx context.Context) ([]string, error) {
	results, err := s.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}

	seen := make(map[string]bool)
	var filenames []string
	for _, meta := range results.GetMetadatas() {
		metaMap := metadataToMap(meta)
		if name, ok := metaMap[metaSourceFilename].(string); ok && !seen[name] {
			seen[name] = true
			filenames = append(filenames, name)
		}
	}
	sort.Strings(filenames)
	return filenames, nil
}

// SimilaritySearch implements VectorStore. Chroma reports cosine distances;
// they are converted to similarity scores so higher always means closer.
func (s *ChromaVectorStore) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	var scored []models.ScoredChunk
	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}

		rec := models.ChunkRecord{Text: doc.ContentString()}
		metaMap := metadataToMap(metadataGroups[0][i])
		if name, ok := metaMap[metaSourceFilename].(string); ok {
			rec.SourceFilename = name
		}
		if idx, ok := metaMap[metaSequenceIndex].(float64); ok {
			rec.SequenceIndex = int(idx)
		}
		rec.ID = fmt.Sprintf("%s:%d", rec.SourceFilename, rec.SequenceIndex)

		score := 0.0
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			score = 1 - float64(distanceGroups[0][i]) // Convert distance to similarity
		}
		scored = append(scored, models.ScoredChunk{Record: rec, Score: score})
	}
	return scored, nil
}

func (s *ChromaVectorStore) countByFilename(ctx context.Context, filename string) (int, error) {
	results, err := s.collection.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	count := 0
	for _, meta := range results.GetMetadatas() {
		metaMap := metadataToMap(meta)
		if name, ok := metaMap[metaSourceFilename].(string); ok && name == filename {
			count++
		}
	}
	return count, nil
}

// metadataToMap converts Chroma's DocumentMetadata into a plain map. The
// struct exposes no accessor for all values, so a JSON round trip is the
// reliable way to read it back.
func metadataToMap(meta chromago.DocumentMetadata) map[string]interface{} {
	metaMap := make(map[string]interface{})
	if meta == nil {
		return metaMap
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return metaMap
	}
	if err := json.Unmarshal(jsonBytes, &metaMap); err != nil {
		return make(map[string]interface{})
	}
	return metaMap
}
