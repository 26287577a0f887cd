package main

import (
	"testing"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmbeddingModel(t *testing.T) {
	matching := chromago.NewMetadata(
		chromago.NewStringAttribute("embedding_model", "nomic-embed-text:v1.5"),
	)
	assert.NoError(t, verifyEmbeddingModel(matching, "nomic-embed-text:v1.5"))

	mismatched := chromago.NewMetadata(
		chromago.NewStringAttribute("embedding_model", "mxbai-embed-large"),
	)
	err := verifyEmbeddingModel(mismatched, "nomic-embed-text:v1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mxbai-embed-large")

	// Collections created before the attribute existed are let through.
	assert.NoError(t, verifyEmbeddingModel(chromago.NewEmptyMetadata(), "nomic-embed-text:v1.5"))
	assert.NoError(t, verifyEmbeddingModel(nil, "nomic-embed-text:v1.5"))
}
