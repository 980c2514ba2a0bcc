package memory

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrEmbedding marks failures of the embedding step, so callers can tell
// them apart from vector-store failures.
var ErrEmbedding = errors.New("embedding failed")

const defaultEmbeddingModel = "models/embedding-001"

// Embedder turns text into the 768-dim vector the store indexes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds through the Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: model returned no vector", ErrEmbedding)
	}
	vector := resp.Embeddings[0].Values
	if len(vector) != VectorSize {
		return nil, fmt.Errorf("%w: model %q returned a %d-dim vector, collection expects %d",
			ErrEmbedding, e.model, len(vector), VectorSize)
	}
	return vector, nil
}

var _ Embedder = (*GeminiEmbedder)(nil)
