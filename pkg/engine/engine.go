package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/chunker"
)

// BatchEmbedder embeds many chunk texts with ingestion-time batching and
// rate limiting.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

type EngineConfig struct {
	DefaultTopK int
	Logger      zerolog.Logger
}

// Engine wires the pipeline together: chunk and embed at ingestion time,
// retrieve and synthesize per question. One active document per process;
// each ingest replaces the previous generation wholesale.
type Engine struct {
	config      EngineConfig
	chunker     chunker.Chunker
	embedder    BatchEmbedder // nil when running on the lexical retriever
	index       types.VectorIndex
	retriever   types.Retriever
	synthesizer types.Synthesizer
}

func New(config EngineConfig, ch chunker.Chunker, embedder BatchEmbedder, idx types.VectorIndex, r types.Retriever, s types.Synthesizer) *Engine {
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	return &Engine{
		config:      config,
		chunker:     ch,
		embedder:    embedder,
		index:       idx,
		retriever:   r,
		synthesizer: s,
	}
}

// IngestText ingests a flat text document.
func (e *Engine) IngestText(ctx context.Context, text string) (models.DocumentSummary, error) {
	return e.ingest(ctx, e.chunker.Chunk(text), 0)
}

// IngestPages ingests pre-split page text; chunks carry their page number.
func (e *Engine) IngestPages(ctx context.Context, pages []models.Page) (models.DocumentSummary, error) {
	return e.ingest(ctx, e.chunker.ChunkPages(pages), len(pages))
}

// ingest is all-or-nothing: any failure leaves the previous generation
// intact and queryable.
func (e *Engine) ingest(ctx context.Context, chunks []models.Chunk, numPages int) (models.DocumentSummary, error) {
	embeddings := make([][]float32, 0, len(chunks))

	if e.embedder != nil && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}

		var err error
		embeddings, err = e.embedder.EmbedAll(ctx, texts)
		if err != nil {
			return models.DocumentSummary{}, fmt.Errorf("failed to embed document: %w", err)
		}
	} else {
		// Lexical mode stores empty vectors; the retriever scores chunk
		// text directly.
		for range chunks {
			embeddings = append(embeddings, []float32{})
		}
	}

	if err := e.index.ReplaceAll(chunks, embeddings); err != nil {
		return models.DocumentSummary{}, err
	}

	summary := models.DocumentSummary{
		DocumentID: uuid.NewString(),
		NumChunks:  len(chunks),
		NumPages:   numPages,
	}

	e.config.Logger.Info().
		Str("document_id", summary.DocumentID).
		Int("chunks", summary.NumChunks).
		Int("pages", summary.NumPages).
		Msg("document ingested")

	return summary, nil
}

// Query answers one question against the current document. It returns a
// complete answer or an error, never a partial response.
func (e *Engine) Query(ctx context.Context, question string, topK int) (models.Answer, error) {
	if e.index.IsEmpty() {
		return models.Answer{}, models.ErrNotReady
	}
	if topK <= 0 {
		topK = e.config.DefaultTopK
	}

	retrieved, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return models.Answer{}, err
	}

	answer, citations, err := e.synthesizer.Synthesize(ctx, question, retrieved)
	if err != nil {
		return models.Answer{}, err
	}

	return models.Answer{
		Text:            answer,
		Citations:       citations,
		RetrievedChunks: retrieved,
	}, nil
}
