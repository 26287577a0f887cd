package models

// ChunkRecord is the unit of storage and retrieval: one contiguous span of
// text extracted from a document, together with its embedding and enough
// metadata to attribute it back to the source file.
type ChunkRecord struct {
	ID             string
	Text           string
	SourceFilename string
	SequenceIndex  int
	Embedding      []float32
}

// ScoredChunk pairs a stored chunk with its similarity to a query embedding.
// Higher scores mean closer matches.
type ScoredChunk struct {
	Record ChunkRecord
	Score  float64
}

// UploadedFile is what the upload boundary delivers to the ingestion
// pipeline: a filename and the raw document bytes.
type UploadedFile struct {
	Filename string
	Data     []byte
}
