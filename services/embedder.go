package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder maps text to a fixed-dimension numeric vector. One embedding
// function serves a store for its whole lifetime: identical text must yield
// identical vectors, and ModelName identifies the function so a store built
// under one model can reject clients configured with another.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// ollamaEmbedRequest is used to structure the request to the Ollama embedding API.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse is used to parse the embedding from the Ollama API response.
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaEmbedder generates embeddings by calling a local Ollama server.
type OllamaEmbedder struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dimensions int
}

// NewOllamaEmbedder creates an embedder backed by the Ollama embeddings API.
// The timeout bounds every embedding call; exceeding it surfaces as an
// embedding-unavailable failure rather than hanging the ingestion batch.
func NewOllamaEmbedder(baseURL, model string, dimensions int, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
	}
}

// Embed generates an embedding vector for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, newPipelineError(ErrKindEmbeddingUnavailable, "failed to call ollama embedding api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, newPipelineError(ErrKindEmbeddingUnavailable,
			fmt.Sprintf("ollama api returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	var ollamaResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, newPipelineError(ErrKindEmbeddingUnavailable, "failed to decode ollama response", err)
	}
	return ollamaResp.Embedding, nil
}

// Dimensions returns the embedding vector size for the configured model.
func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

// ModelName returns the identifier of the embedding function.
func (e *OllamaEmbedder) ModelName() string { return e.model }
