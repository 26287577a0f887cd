package services

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Generator produces answer text from an assembled prompt. The LLM is a
// black-box collaborator: it may fail or time out, and no implicit retry is
// performed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator answers prompts using Google Gemini.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiGenerator creates a generator for the given Gemini model. The
// timeout bounds each generation call.
func NewGeminiGenerator(client *genai.Client, model string, timeout time.Duration) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model, timeout: timeout}
}

// Generate sends the prompt to Gemini and returns the concatenated text parts
// of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", newPipelineError(ErrKindGenerationUnavailable, "gemini api call failed", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", newPipelineError(ErrKindGenerationUnavailable, "gemini returned no candidates", nil)
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return responseText.String(), nil
}
