package index_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/index"
)

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	return index.NewWithConfig(index.IndexConfig{Logger: zerolog.Nop()})
}

func chunk(id, text string) models.Chunk {
	return models.Chunk{ID: id, Text: text, TokenEstimate: len(text) / 4}
}

func TestIndex_EmptyByDefault(t *testing.T) {
	idx := newIndex(t)

	assert.True(t, idx.IsEmpty())
	assert.Equal(t, 0, idx.Size())

	results, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_ReplaceAllSize(t *testing.T) {
	idx := newIndex(t)

	err := idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{1, 0}, {0, 1}},
	)
	require.NoError(t, err)

	assert.False(t, idx.IsEmpty())
	assert.Equal(t, 2, idx.Size())
}

func TestIndex_ReplaceAllLengthMismatch(t *testing.T) {
	idx := newIndex(t)

	err := idx.ReplaceAll([]models.Chunk{chunk("chunk_1", "a")}, [][]float32{})

	var mismatch *models.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, idx.IsEmpty(), "failed replace must leave the index unchanged")
}

func TestIndex_ReplaceAllRaggedVectors(t *testing.T) {
	idx := newIndex(t)

	err := idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{1, 0}, {0, 1, 2}},
	)

	var mismatch *models.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestIndex_ReplaceAllEmptyVectorAmongFull(t *testing.T) {
	idx := newIndex(t)

	// An empty vector cannot share a generation with sized ones, whichever
	// side comes first.
	err := idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{}, {1, 2}},
	)
	var mismatch *models.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, idx.IsEmpty())

	err = idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{1, 2}, {}},
	)
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, idx.IsEmpty())
}

func TestIndex_ReplaceAllAllEmptyVectors(t *testing.T) {
	idx := newIndex(t)

	// Uniformly empty vectors are one consistent generation; this is how
	// lexical mode stores its chunks.
	err := idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{}, {}},
	)

	require.NoError(t, err)
	assert.Equal(t, 2, idx.Size())
}

func TestIndex_SearchNegativeTopK(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a")},
		[][]float32{{1, 0}},
	))

	results, err := idx.Search([]float32{1, 0}, -1)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_SearchSortedAndBounded(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b"), chunk("chunk_3", "c")},
		[][]float32{{0, 1}, {1, 0}, {1, 1}},
	))

	results, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)

	// topK larger than index size returns all, not 5.
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
	assert.Equal(t, "chunk_2", results[0].Chunk.ID)
}

func TestIndex_SearchStableTies(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b"), chunk("chunk_3", "c")},
		[][]float32{{1, 0}, {1, 0}, {1, 0}},
	))

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "chunk_1", results[0].Chunk.ID)
	assert.Equal(t, "chunk_2", results[1].Chunk.ID)
	assert.Equal(t, "chunk_3", results[2].Chunk.ID)
}

func TestIndex_SearchQueryDimensionMismatch(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a")},
		[][]float32{{1, 0, 0}},
	))

	_, err := idx.Search([]float32{1, 0}, 1)

	var mismatch *models.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Want)
	assert.Equal(t, 2, mismatch.Got)
}

func TestIndex_ReplaceWhileSearching(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{1, 0}, {0, 1}},
	))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				results, err := idx.Search([]float32{1, 1}, 10)
				assert.NoError(t, err)
				// A search sees a whole generation: 2 chunks or 3, never
				// a mix.
				assert.Contains(t, []int{2, 3}, len(results))
			}
		}()
	}

	for j := 0; j < 50; j++ {
		require.NoError(t, idx.ReplaceAll(
			[]models.Chunk{chunk("chunk_1", "x"), chunk("chunk_2", "y"), chunk("chunk_3", "z")},
			[][]float32{{1, 0}, {0, 1}, {1, 1}},
		))
		require.NoError(t, idx.ReplaceAll(
			[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
			[][]float32{{1, 0}, {0, 1}},
		))
	}
	wg.Wait()
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 2}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, index.CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosineSimilarity_SymmetricAndBounded(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-4, 0.5, 2},
		{0.1, 0.1, 0.1},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			ab := index.CosineSimilarity(a, b)
			ba := index.CosineSimilarity(b, a)
			assert.InDelta(t, ab, ba, 1e-6)
			assert.LessOrEqual(t, ab, float32(1.0001))
			assert.GreaterOrEqual(t, ab, float32(-1.0001))
		}
	}
}

func TestIndex_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx := index.NewWithConfig(index.IndexConfig{SnapshotPath: path, Logger: zerolog.Nop()})
	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "persisted text")},
		[][]float32{{0.5, 0.5}},
	))

	// A fresh index at the same path loads the saved generation.
	reloaded := index.NewWithConfig(index.IndexConfig{SnapshotPath: path, Logger: zerolog.Nop()})
	assert.Equal(t, 1, reloaded.Size())

	results, err := reloaded.Search([]float32{0.5, 0.5}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted text", results[0].Chunk.Text)
	assert.InDelta(t, 1, results[0].Similarity, 1e-6)
}

func TestIndex_SnapshotSaveFailureIsNotFatal(t *testing.T) {
	// Point the snapshot at a directory that does not exist; the save fails
	// but the generation stays queryable.
	idx := index.NewWithConfig(index.IndexConfig{
		SnapshotPath: filepath.Join(string(os.PathSeparator), "nonexistent-docqa-dir", "index.json"),
		Logger:       zerolog.Nop(),
	})

	err := idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "still queryable")},
		[][]float32{{1, 0}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())
}

func TestIndex_RaggedSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	ragged := `{"documents":[{"id":"chunk_1","text":"a"},{"id":"chunk_2","text":"b"}],"embeddings":[[],[1,2]]}`
	require.NoError(t, os.WriteFile(path, []byte(ragged), 0644))

	idx := index.NewWithConfig(index.IndexConfig{SnapshotPath: path, Logger: zerolog.Nop()})

	assert.True(t, idx.IsEmpty(), "a snapshot with inconsistent vector dimensions must be rejected")
}

func TestIndex_CorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	idx := index.NewWithConfig(index.IndexConfig{SnapshotPath: path, Logger: zerolog.Nop()})
	assert.True(t, idx.IsEmpty())
}

func TestIndex_ChunksCopy(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.ReplaceAll(
		[]models.Chunk{chunk("chunk_1", "a"), chunk("chunk_2", "b")},
		[][]float32{{1, 0}, {0, 1}},
	))

	chunks := idx.Chunks()
	require.Len(t, chunks, 2)
	chunks[0].Text = "mutated"

	fresh := idx.Chunks()
	assert.Equal(t, "a", fresh[0].Text, "callers receive copies, not the generation itself")
	assert.Equal(t, fmt.Sprintf("chunk_%d", 2), fresh[1].ID)
}
