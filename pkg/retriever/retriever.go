package retriever

import (
	"context"
	"fmt"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/index"
)

// Embedder is the single-query embedding capability the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingRetriever answers a question by embedding it once and running a
// similarity search over the current index generation. Query embeddings are
// not cached across calls.
type EmbeddingRetriever struct {
	embedder Embedder
	index    *index.Index
}

func NewEmbeddingRetriever(embedder Embedder, idx *index.Index) *EmbeddingRetriever {
	return &EmbeddingRetriever{embedder: embedder, index: idx}
}

func (r *EmbeddingRetriever) Retrieve(ctx context.Context, question string, topK int) ([]models.RetrievalResult, error) {
	if r.index.IsEmpty() {
		return nil, models.ErrNotReady
	}
	if topK <= 0 {
		topK = 5
	}

	query, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	return r.index.Search(query, topK)
}
