package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/docqa/internal/types"
	"golang.org/x/time/rate"
)

// BatchEmbedderConfig controls ingestion-time embedding throughput.
type BatchEmbedderConfig struct {
	// BatchSize is the number of texts per upstream call.
	BatchSize int
	// BatchDelay is the minimum spacing between batch calls, enforced with
	// a rate limiter to respect upstream limits.
	BatchDelay time.Duration
	Logger     zerolog.Logger
	// OnProgress reports embedded/total after each batch; nil disables it.
	OnProgress func(done, total int)
}

// BatchEmbedder partitions chunk texts into fixed-size batches and embeds
// one batch per upstream call. When a whole batch fails, it falls back to
// embedding that batch's texts one at a time instead of failing the whole
// ingestion.
type BatchEmbedder struct {
	config   BatchEmbedderConfig
	embedder types.Embedder
	limiter  *rate.Limiter
}

func NewBatchEmbedder(embedder types.Embedder, config BatchEmbedderConfig) *BatchEmbedder {
	if config.BatchSize == 0 {
		config.BatchSize = 16
	}
	if config.BatchDelay == 0 {
		config.BatchDelay = 200 * time.Millisecond
	}

	return &BatchEmbedder{
		config:   config,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Every(config.BatchDelay), 1),
	}
}

// EmbedAll embeds texts in order, batch by batch.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		embedded, err := b.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			b.config.Logger.Warn().Err(err).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("batch embedding failed, retrying texts one at a time")

			embedded, err = b.embedOneAtATime(ctx, batch)
			if err != nil {
				return nil, err
			}
		}
		vectors = append(vectors, embedded...)

		if b.config.OnProgress != nil {
			b.config.OnProgress(len(vectors), len(texts))
		}
	}

	return vectors, nil
}

func (b *BatchEmbedder) embedOneAtATime(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vec, err := b.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
