package models

// FileIngestStatus reports the outcome of ingesting a single uploaded file.
// A failing file never aborts its siblings, so the response carries one
// status per file.
type FileIngestStatus struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// IngestionResponse is the structure for the response of POST /documents.
type IngestionResponse struct {
	TotalChunksAdded    int                `json:"total_chunks_added"`
	ProcessedFilesCount int                `json:"processed_files_count"`
	FilesWithErrors     []string           `json:"files_with_errors"`
	Files               []FileIngestStatus `json:"files"`
	Message             string             `json:"message"`
}

// DocumentListResponse is the structure for the response of GET /documents.
type DocumentListResponse struct {
	Count     int      `json:"count"`
	Documents []string `json:"documents"`
}

// DocumentDeleteResponse is the structure for the response of DELETE /documents/:filename.
type DocumentDeleteResponse struct {
	Message         string `json:"message"`
	DeletedFilename string `json:"deleted_filename"`
}

// QueryResponse carries the generated answer plus the distinct source
// filenames whose chunks were included in the prompt that produced it.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
