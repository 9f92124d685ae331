package search

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder implements Embedder using the Gemini embedding API.
//
// gemini-embedding-001 outputs 3072 dimensions by default but supports
// truncation via OutputDimensionality; the passages schema stores 768
// (see the migrations), so the two must be configured together.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGeminiEmbedder creates a GeminiEmbedder backed by the given API key.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int32) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

// Embed returns the embedding vector for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(e.dimension),
	})
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}
