// Package contextmgr deduplicates drafted content across sub-topic reports:
// written fragments are chunked, embedded and indexed once per workflow run,
// then candidate section titles are matched against the index so the
// assembler can steer around already-covered ground.
package contextmgr

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder turns text into vectors. The production implementation uses the
// Gemini embedding API; tests supply a deterministic fake.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GoogleEmbedder wraps Gemini embeddings.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

func NewGoogleEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}
	return &GoogleEmbedder{client: client, model: model, dimension: int32(dimension)}, nil
}

func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	// Sequential calls keep us clear of batch limits across SDK versions.
	result := make([][]float32, 0, len(texts))
	for _, text := range texts {
		res, err := e.client.Models.EmbedContent(ctx, e.model, []*genai.Content{
			{Parts: []*genai.Part{{Text: text}}},
		}, &genai.EmbedContentConfig{OutputDimensionality: &e.dimension})
		if err != nil {
			return nil, fmt.Errorf("failed to embed text: %w", err)
		}
		if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned")
		}
		result = append(result, res.Embeddings[0].Values)
	}
	return result, nil
}
