package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuquery/rag/models"
	"github.com/docuquery/rag/services"
)

// fakeIngestionService lets each test script the service layer's behavior
// without touching a real store or embedder.
type fakeIngestionService struct {
	results   []services.IngestResult
	documents []string
	deleteErr error
	listErr   error
}

func (f *fakeIngestionService) IngestFile(_ context.Context, filename string, _ []byte) (int, error) {
	for _, r := range f.results {
		if r.Filename == filename {
			return r.ChunkCount, r.Err
		}
	}
	return 0, nil
}

func (f *fakeIngestionService) IngestFiles(_ context.Context, _ []models.UploadedFile) []services.IngestResult {
	return f.results
}

func (f *fakeIngestionService) DeleteDocument(_ context.Context, _ string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return 1, nil
}

func (f *fakeIngestionService) ListDocuments(_ context.Context) ([]string, error) {
	return f.documents, f.listErr
}

type fakeRAGService struct {
	result services.QueryResult
	err    error
}

func (f *fakeRAGService) Query(_ context.Context, _ string) (services.QueryResult, error) {
	return f.result, f.err
}

func setupRouter(ingest services.IngestionService, rag services.RAGService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctrl := NewRAGController(ingest, rag, 5, 10*1024*1024)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/documents", ctrl.UploadDocuments)
		v1.GET("/documents", ctrl.ListDocuments)
		v1.DELETE("/documents/:filename", ctrl.DeleteDocument)
		v1.POST("/query", ctrl.QueryRAG)
	}
	return router
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadDocumentsMixedResults(t *testing.T) {
	ingest := &fakeIngestionService{results: []services.IngestResult{
		{Filename: "alpha.txt", ChunkCount: 3},
		{Filename: "image.png", Err: errors.New("unsupported_format: unsupported file format: .png")},
	}}
	router := setupRouter(ingest, &fakeRAGService{})

	body, contentType := multipartBody(t, map[string]string{
		"alpha.txt": "some text content",
		"image.png": "\x89PNG",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.IngestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ProcessedFilesCount)
	assert.Equal(t, 3, resp.TotalChunksAdded)
	assert.Equal(t, []string{"image.png"}, resp.FilesWithErrors)
	require.Len(t, resp.Files, 2)
	assert.Empty(t, resp.Files[0].Error)
	assert.Contains(t, resp.Files[1].Error, "unsupported")
}

func TestUploadDocumentsNoFiles(t *testing.T) {
	router := setupRouter(&fakeIngestionService{}, &fakeRAGService{})

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadDocumentsTooManyFiles(t *testing.T) {
	router := setupRouter(&fakeIngestionService{}, &fakeRAGService{})

	files := map[string]string{}
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"} {
		files[name] = "content"
	}
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestListDocuments(t *testing.T) {
	router := setupRouter(&fakeIngestionService{documents: []string{"alpha.txt", "beta.pdf"}}, &fakeRAGService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DocumentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{"alpha.txt", "beta.pdf"}, resp.Documents)
}

func TestListDocumentsEmpty(t *testing.T) {
	router := setupRouter(&fakeIngestionService{}, &fakeRAGService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// The JSON body must carry an empty array, never null.
	assert.Contains(t, w.Body.String(), `"documents":[]`)
}

func TestDeleteDocument(t *testing.T) {
	router := setupRouter(&fakeIngestionService{}, &fakeRAGService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/alpha.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DocumentDeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alpha.txt", resp.DeletedFilename)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	ingest := &fakeIngestionService{
		deleteErr: &services.PipelineError{
			Kind:    services.ErrKindDocumentNotFound,
			Message: "no chunks stored for 'ghost.txt'",
		},
	}
	router := setupRouter(ingest, &fakeRAGService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/ghost.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "document_not_found")
}

func TestQueryRAGSuccess(t *testing.T) {
	rag := &fakeRAGService{result: services.QueryResult{
		State:   services.QueryCompleted,
		Answer:  "Gophers eat roots.",
		Sources: []string{"alpha.txt"},
	}}
	router := setupRouter(&fakeIngestionService{}, rag)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question": "What do gophers eat?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Gophers eat roots.", resp.Answer)
	assert.Equal(t, []string{"alpha.txt"}, resp.Sources)
}

func TestQueryRAGEmptySourcesSerializeAsArray(t *testing.T) {
	rag := &fakeRAGService{result: services.QueryResult{
		State:  services.QueryCompleted,
		Answer: "From general knowledge.",
	}}
	router := setupRouter(&fakeIngestionService{}, rag)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question": "anything?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
}

func TestQueryRAGFailedPipeline(t *testing.T) {
	rag := &fakeRAGService{result: services.QueryResult{
		State:  services.QueryFailed,
		Reason: services.FailGenerationUnavailable,
		Err:    errors.New("llm unavailable"),
	}}
	router := setupRouter(&fakeIngestionService{}, rag)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question": "anything?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "generation_unavailable")
}

func TestQueryRAGMissingQuestion(t *testing.T) {
	router := setupRouter(&fakeIngestionService{}, &fakeRAGService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.ErrKindUnsupportedFormat, http.StatusUnsupportedMediaType},
		{services.ErrKindParseFailure, http.StatusUnprocessableEntity},
		{services.ErrKindDocumentNotFound, http.StatusNotFound},
		{services.ErrKindEmbeddingUnavailable, http.StatusServiceUnavailable},
		{services.ErrKindRetrievalUnavailable, http.StatusServiceUnavailable},
		{services.ErrKindGenerationUnavailable, http.StatusServiceUnavailable},
		{services.ErrorKind(""), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForKind(tc.kind), "kind %q", tc.kind)
	}
}
