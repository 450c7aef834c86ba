package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/docqa/internal/models"
)

// EmbedderConfig configures the Ollama-backed embedder.
type EmbedderConfig struct {
	Model      string
	BaseURL    string
	MaxRetries int
}

// Embedder produces fixed-length vectors for chunk and query text via an
// Ollama embedding model. Rate-limited calls are retried with exponential
// backoff before the error surfaces.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{config: config, llm: emb}, nil
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one upstream call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	err := withRetry(ctx, e.config.MaxRetries, func() error {
		embedded, err := e.llm.CreateEmbedding(ctx, texts)
		if err != nil {
			return classify("embedding", err)
		}
		vectors = embedded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, &models.DimensionMismatchError{Want: len(texts), Got: len(vectors)}
	}
	return vectors, nil
}
