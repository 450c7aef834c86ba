package types

import (
	"context"

	"github.com/xhad/docqa/internal/models"
)

// Embedder turns text into fixed-length vectors. EmbedBatch preserves input
// order. Implementations may return models.ErrRateLimited for transient
// upstream rejections.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// VectorIndex holds the current generation of chunks and their embeddings.
// The generation is replaced wholesale on each ingest; searches always
// observe a complete generation.
type VectorIndex interface {
	ReplaceAll(chunks []models.Chunk, embeddings [][]float32) error
	Search(query []float32, topK int) ([]models.RetrievalResult, error)
	IsEmpty() bool
	Size() int
}

// Retriever returns the topK most relevant chunks for a question. Selected
// once at startup; the embedding-based and lexical implementations are
// interchangeable behind this contract.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]models.RetrievalResult, error)
}

// Synthesizer composes a grounded answer with citations from retrieved
// chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, retrieved []models.RetrievalResult) (string, []models.Citation, error)
}
