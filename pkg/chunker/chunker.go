package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xhad/docqa/internal/models"
)

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunker splits raw document text into overlapping, bounded-size chunks
// with stable sequential identifiers.
type Chunker struct {
	config ChunkerConfig
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}

	return Chunker{config: config}
}

// Chunk splits text into chunks of at most ChunkSize characters, accumulated
// on paragraph boundaries. A single paragraph longer than ChunkSize is
// emitted whole rather than split mid-paragraph. Empty input yields an empty
// slice.
func (c *Chunker) Chunk(text string) []models.Chunk {
	var chunks []models.Chunk
	next := 1
	c.chunkInto(&chunks, &next, text, nil)
	return chunks
}

// ChunkPages applies the same algorithm independently per page and tags each
// chunk with its page number. Chunks never span pages; the id sequence runs
// across the whole document.
func (c *Chunker) ChunkPages(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	next := 1
	for _, page := range pages {
		n := page.Number
		c.chunkInto(&chunks, &next, page.Text, &n)
	}
	return chunks
}

func (c *Chunker) chunkInto(chunks *[]models.Chunk, next *int, text string, pageNumber *int) {
	paragraphs := splitParagraphs(text)

	var buf strings.Builder
	for _, para := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(para)+1 > c.config.ChunkSize {
			sealed := buf.String()
			*chunks = append(*chunks, c.newChunk(next, sealed, pageNumber))

			buf.Reset()
			buf.WriteString(overlapTail(sealed, c.config.ChunkOverlap))
			buf.WriteString(" ")
		} else if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(para)
	}

	if tail := strings.TrimSpace(buf.String()); tail != "" {
		*chunks = append(*chunks, c.newChunk(next, tail, pageNumber))
	}
}

func (c *Chunker) newChunk(next *int, text string, pageNumber *int) models.Chunk {
	chunk := models.Chunk{
		ID:            fmt.Sprintf("chunk_%d", *next),
		Text:          strings.TrimSpace(text),
		TokenEstimate: estimateTokens(text),
	}
	if pageNumber != nil {
		n := *pageNumber
		chunk.PageNumber = &n
	}
	*next++
	return chunk
}

// splitParagraphs breaks text on blank-line runs and collapses whitespace
// inside each paragraph.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, raw := range paragraphSplit.Split(text, -1) {
		para := strings.Join(strings.Fields(raw), " ")
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}

func overlapTail(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return text
	}
	return text[len(text)-overlap:]
}

// Rough heuristic: one token per four characters of English text.
func estimateTokens(text string) int {
	return len(text) / 4
}
