package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder produces a vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embeddingAPI is the slice of the OpenAI-compatible client used by
// OpenAIEmbedder. Narrow on purpose so tests can script it.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings endpoint.
type OpenAIEmbedder struct {
	api   embeddingAPI
	model openai.EmbeddingModel
}

// NewEmbedder creates an OpenAIEmbedder. baseURL may be empty to use the
// upstream default endpoint.
func NewEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newEmbedder(openai.NewClientWithConfig(cfg), model)
}

func newEmbedder(api embeddingAPI, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{api: api, model: openai.EmbeddingModel(model)}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}
