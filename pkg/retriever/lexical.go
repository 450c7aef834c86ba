package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/index"
)

// verbatimBonus is added when a chunk contains the full query string.
const verbatimBonus = 10

// LexicalRetriever is a drop-in replacement for EmbeddingRetriever used when
// no embedding model is configured. It scores chunks by word occurrence
// counts, trading relevance quality for zero external dependency.
type LexicalRetriever struct {
	index *index.Index
}

func NewLexicalRetriever(idx *index.Index) *LexicalRetriever {
	return &LexicalRetriever{index: idx}
}

// Retrieve scores each chunk by the summed occurrence count of query words
// longer than 3 characters, plus a flat bonus when the chunk contains the
// full query verbatim (case-insensitive). The top K chunks are returned even
// when every score is 0.
func (r *LexicalRetriever) Retrieve(ctx context.Context, question string, topK int) ([]models.RetrievalResult, error) {
	if r.index.IsEmpty() {
		return nil, models.ErrNotReady
	}
	if topK <= 0 {
		topK = 5
	}

	query := strings.ToLower(strings.TrimSpace(question))
	var terms []string
	for _, word := range strings.Fields(query) {
		if len(word) > 3 {
			terms = append(terms, word)
		}
	}

	chunks := r.index.Chunks()
	results := make([]models.RetrievalResult, len(chunks))
	for i, chunk := range chunks {
		text := strings.ToLower(chunk.Text)

		score := 0
		for _, term := range terms {
			score += strings.Count(text, term)
		}
		if query != "" && strings.Contains(text, query) {
			score += verbatimBonus
		}

		results[i] = models.RetrievalResult{Chunk: chunk, Similarity: float32(score)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}
