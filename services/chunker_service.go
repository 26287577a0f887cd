package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/docuquery/rag/models"
)

// Chunker splits extracted document text into overlapping windows. Boundaries
// are deterministic for a given text and configuration, so re-ingesting the
// same document always reproduces the same chunk set.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given maximum window size and overlap,
// both measured in characters.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// ChunkDocument splits text into chunk records for the given source filename.
// Chunk IDs are derived from the filename and the sequence index. An empty or
// whitespace-only document yields zero chunks, which is not an error: the
// caller reports the zero count so silent no-ops stay observable.
func (c *Chunker) ChunkDocument(filename, text string) ([]models.ChunkRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text of %s: %w", filename, err)
	}

	records := make([]models.ChunkRecord, 0, len(pieces))
	for i, piece := range pieces {
		records = append(records, models.ChunkRecord{
			ID:             fmt.Sprintf("%s:%d", filename, i),
			Text:           piece,
			SourceFilename: filename,
			SequenceIndex:  i,
		})
	}
	return records, nil
}
