package index

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/xhad/docqa/internal/models"
)

type IndexConfig struct {
	// SnapshotPath is where the current generation is persisted. Empty
	// disables persistence.
	SnapshotPath string
	Logger       zerolog.Logger
}

// generation is one complete, immutable (chunks, embeddings) pair. A search
// operates on the generation it loaded and never observes a partial replace.
type generation struct {
	chunks    []models.Chunk
	vectors   [][]float32
	dimension int
}

// Index is an in-memory vector index over the single active document.
// ReplaceAll swaps the whole generation atomically; Search reads whichever
// generation was current when it started.
type Index struct {
	config IndexConfig
	gen    atomic.Pointer[generation]

	// Serializes snapshot writes; at most one ingestion writes at a time.
	saveMu sync.Mutex
}

func NewWithConfig(config IndexConfig) *Index {
	idx := &Index{config: config}
	idx.gen.Store(&generation{})

	if config.SnapshotPath != "" {
		if err := idx.loadSnapshot(); err != nil {
			idx.config.Logger.Warn().Err(err).
				Str("path", config.SnapshotPath).
				Msg("could not load index snapshot, starting empty")
		}
	}

	return idx
}

// ReplaceAll atomically replaces the active generation. The previous
// generation stays intact on any error. A failed snapshot save is logged as
// a warning and does not roll back the in-memory generation.
func (idx *Index) ReplaceAll(chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return &models.DimensionMismatchError{Want: len(chunks), Got: len(embeddings)}
	}

	// The first vector pins the generation's dimensionality; every other
	// vector must match it exactly, empty ones included.
	dimension := 0
	if len(embeddings) > 0 {
		dimension = len(embeddings[0])
	}
	for _, vec := range embeddings {
		if len(vec) != dimension {
			return &models.DimensionMismatchError{Want: dimension, Got: len(vec)}
		}
	}

	next := &generation{
		chunks:    append([]models.Chunk(nil), chunks...),
		vectors:   append([][]float32(nil), embeddings...),
		dimension: dimension,
	}
	idx.gen.Store(next)

	if idx.config.SnapshotPath != "" {
		if err := idx.saveSnapshot(next); err != nil {
			idx.config.Logger.Warn().Err(err).
				Str("path", idx.config.SnapshotPath).
				Msg("index snapshot save failed, document will not survive a restart")
		}
	}

	return nil
}

// Search returns up to topK results sorted by descending cosine similarity,
// ties broken by insertion order. An empty index yields an empty slice.
func (idx *Index) Search(query []float32, topK int) ([]models.RetrievalResult, error) {
	gen := idx.gen.Load()
	if len(gen.chunks) == 0 {
		return []models.RetrievalResult{}, nil
	}
	if len(query) != gen.dimension {
		return nil, &models.DimensionMismatchError{Want: gen.dimension, Got: len(query)}
	}

	results := make([]models.RetrievalResult, len(gen.chunks))
	for i := range gen.chunks {
		results[i] = models.RetrievalResult{
			Chunk:      gen.chunks[i],
			Similarity: CosineSimilarity(query, gen.vectors[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Chunks returns a copy of the current generation's chunks, in insertion
// order. Used by the lexical retriever, which scores chunk text directly.
func (idx *Index) Chunks() []models.Chunk {
	gen := idx.gen.Load()
	return append([]models.Chunk(nil), gen.chunks...)
}

func (idx *Index) IsEmpty() bool { return len(idx.gen.Load().chunks) == 0 }

func (idx *Index) Size() int { return len(idx.gen.Load().chunks) }

// CosineSimilarity is dot(a,b) / (||a||*||b||), defined as 0 when either
// norm is 0. The zero-norm convention avoids division by zero.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
