package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EmbeddingClient implements the EmbeddingClient port using the OpenAI
// embeddings API.
type EmbeddingClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *zap.Logger
}

// NewEmbeddingClient creates a new OpenAI embedding client. An empty
// model name selects text-embedding-ada-002.
func NewEmbeddingClient(client *openai.Client, model string, logger *zap.Logger) *EmbeddingClient {
	embeddingModel := openai.AdaEmbeddingV2
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	return &EmbeddingClient{
		client: client,
		model:  embeddingModel,
		logger: logger,
	}
}

// Embed returns the embedding vector for the given text. An empty
// result from the API is reported as an empty vector, not an error, so
// callers can degrade to non-semantic retrieval.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings with OpenAI: %w", err)
	}
	if len(resp.Data) == 0 {
		c.logger.Warn("Embedding response contained no data")
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}
