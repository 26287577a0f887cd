package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text:v1.5", req.Model)
		assert.Equal(t, "hello world", req.Prompt)

		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "nomic-embed-text:v1.5", 3, 5*time.Second)
	vec, err := embedder.Embed(context.Background(), "hello world")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, embedder.Dimensions())
	assert.Equal(t, "nomic-embed-text:v1.5", embedder.ModelName())
}

func TestOllamaEmbedderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "nomic-embed-text:v1.5", 768, 5*time.Second)
	_, err := embedder.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, ErrKindEmbeddingUnavailable, KindOf(err))

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Retryable(), "a backend outage is transient and must be marked retryable")
}

func TestOllamaEmbedderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	embedder := NewOllamaEmbedder(server.URL, "nomic-embed-text:v1.5", 768, time.Second)
	_, err := embedder.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, ErrKindEmbeddingUnavailable, KindOf(err))
}

func TestOllamaEmbedderTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		server.Close()
	}()

	embedder := NewOllamaEmbedder(server.URL, "nomic-embed-text:v1.5", 768, 50*time.Millisecond)
	_, err := embedder.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, ErrKindEmbeddingUnavailable, KindOf(err))
}

func TestOllamaEmbedderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "nomic-embed-text:v1.5", 768, 5*time.Second)
	_, err := embedder.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, ErrKindEmbeddingUnavailable, KindOf(err))
}
