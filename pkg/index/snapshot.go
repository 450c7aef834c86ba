package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xhad/docqa/internal/models"
)

// snapshot is the on-disk form of one index generation. The file is
// overwritten wholesale on every ingest and read once at startup.
type snapshot struct {
	Documents  []models.Chunk `json:"documents"`
	Embeddings [][]float32    `json:"embeddings"`
}

func (idx *Index) saveSnapshot(gen *generation) error {
	idx.saveMu.Lock()
	defer idx.saveMu.Unlock()

	data, err := json.Marshal(snapshot{
		Documents:  gen.chunks,
		Embeddings: gen.vectors,
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Write to a temp file and rename so the snapshot on disk is always a
	// whole generation.
	dir := filepath.Dir(idx.config.SnapshotPath)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), idx.config.SnapshotPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

func (idx *Index) loadSnapshot() error {
	data, err := os.ReadFile(idx.config.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(snap.Documents) != len(snap.Embeddings) {
		return &models.DimensionMismatchError{Want: len(snap.Documents), Got: len(snap.Embeddings)}
	}

	dimension := 0
	if len(snap.Embeddings) > 0 {
		dimension = len(snap.Embeddings[0])
	}
	for _, vec := range snap.Embeddings {
		if len(vec) != dimension {
			return &models.DimensionMismatchError{Want: dimension, Got: len(vec)}
		}
	}

	idx.gen.Store(&generation{
		chunks:    snap.Documents,
		vectors:   snap.Embeddings,
		dimension: dimension,
	})

	idx.config.Logger.Info().
		Int("chunks", len(snap.Documents)).
		Str("path", idx.config.SnapshotPath).
		Msg("loaded index snapshot")

	return nil
}
