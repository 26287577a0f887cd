package controller

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuquery/rag/models"
	"github.com/docuquery/rag/services"
)

// RAGController handles the HTTP requests for the RAG API. It depends on the
// ingestion and query services to perform the actual business logic.
type RAGController struct {
	ingestService services.IngestionService
	ragService    services.RAGService
	maxFilesCount int
	maxFileBytes  int64
}

// NewRAGController is a constructor function that creates a new RAGController.
// This is called from main.go to inject the service dependencies.
func NewRAGController(ingestService services.IngestionService, ragService services.RAGService, maxFilesCount int, maxFileBytes int64) *RAGController {
	return &RAGController{
		ingestService: ingestService,
		ragService:    ragService,
		maxFilesCount: maxFilesCount,
		maxFileBytes:  maxFileBytes,
	}
}

// UploadDocuments is the Gin handler for POST /api/v1/documents. It accepts
// a multipart upload of one or more files and reports a per-file outcome:
// one failing file never aborts its siblings.
func (c *RAGController) UploadDocuments(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No files provided under the 'files' field"})
		return
	}
	if len(fileHeaders) > c.maxFilesCount {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("Too many files. Maximum allowed is %d.", c.maxFilesCount),
		})
		return
	}

	var uploads []models.UploadedFile
	for _, fh := range fileHeaders {
		if fh.Size > c.maxFileBytes {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("File '%s' exceeds the size limit of %d bytes.", fh.Filename, c.maxFileBytes),
			})
			return
		}
		f, err := fh.Open()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Could not open uploaded file '%s'", fh.Filename)})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Could not read uploaded file '%s'", fh.Filename)})
			return
		}
		uploads = append(uploads, models.UploadedFile{Filename: fh.Filename, Data: data})
	}

	results := c.ingestService.IngestFiles(ctx.Request.Context(), uploads)

	response := models.IngestionResponse{
		FilesWithErrors: []string{},
		Files:           []models.FileIngestStatus{},
	}
	for _, res := range results {
		status := models.FileIngestStatus{Filename: res.Filename, ChunkCount: res.ChunkCount}
		if res.Err != nil {
			status.Error = res.Err.Error()
			response.FilesWithErrors = append(response.FilesWithErrors, res.Filename)
		} else {
			response.ProcessedFilesCount++
			response.TotalChunksAdded += res.ChunkCount
		}
		response.Files = append(response.Files, status)
	}
	response.Message = fmt.Sprintf("Ingestion process completed. Processed %d files successfully.", response.ProcessedFilesCount)

	ctx.JSON(http.StatusOK, response)
}

// ListDocuments is the Gin handler for GET /api/v1/documents.
func (c *RAGController) ListDocuments(ctx *gin.Context) {
	documents, err := c.ingestService.ListDocuments(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}
	if documents == nil {
		documents = []string{}
	}
	ctx.JSON(http.StatusOK, models.DocumentListResponse{
		Count:     len(documents),
		Documents: documents,
	})
}

// DeleteDocument is the Gin handler for DELETE /api/v1/documents/:filename.
func (c *RAGController) DeleteDocument(ctx *gin.Context) {
	filename := ctx.Param("filename")

	if _, err := c.ingestService.DeleteDocument(ctx.Request.Context(), filename); err != nil {
		status := statusForKind(services.KindOf(err))
		ctx.JSON(status, gin.H{
			"error": fmt.Sprintf("Failed to delete document '%s'", filename),
			"kind":  string(services.KindOf(err)),
		})
		return
	}

	ctx.JSON(http.StatusOK, models.DocumentDeleteResponse{
		Message:         "Document and all its associated chunks have been successfully deleted.",
		DeletedFilename: filename,
	})
}

// QueryRAG is the Gin handler for POST /api/v1/query. It runs the query
// pipeline and maps the tagged result onto HTTP statuses: unavailable
// collaborators are retryable (503), configuration defects are not.
func (c *RAGController) QueryRAG(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.ragService.Query(ctx.Request.Context(), req.Question)
	if err != nil {
		ctx.JSON(statusForKind(services.KindOf(err)), gin.H{
			"error": "Query pipeline is misconfigured",
			"kind":  string(services.KindOf(err)),
		})
		return
	}
	if result.State == services.QueryFailed {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to generate AI response",
			"kind":  string(result.Reason),
		})
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	ctx.JSON(http.StatusOK, models.QueryResponse{
		Answer:  result.Answer,
		Sources: sources,
	})
}

// statusForKind maps the pipeline error taxonomy onto HTTP statuses.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.ErrKindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case services.ErrKindParseFailure:
		return http.StatusUnprocessableEntity
	case services.ErrKindDocumentNotFound:
		return http.StatusNotFound
	case services.ErrKindEmbeddingUnavailable,
		services.ErrKindRetrievalUnavailable,
		services.ErrKindGenerationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
