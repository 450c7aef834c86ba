package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

const systemPrompt = `You are a document question-answering assistant. Answer strictly from the numbered context passages provided by the user.

Rules:
- Cite every claim with a marker [n] referencing the context passage number.
- If the context does not contain the answer, reply exactly: "I cannot answer this from the document."
- Respond in this format:

Answer: <your answer with [n] markers>
Citations:
[C1 | Page <page>] <short supporting quote>
[C2 | Page <page>] <short supporting quote>`

// previewLength bounds the citation preview taken from the chunk text.
const previewLength = 160

type SynthesizerConfig struct {
	Generator types.Generator
}

// Synthesizer sends retrieved chunks plus the question to the generator and
// parses the response into an answer and a citation list. Citation previews
// always come from the authoritative chunk text, never from the model's own
// quotes.
type Synthesizer struct {
	config SynthesizerConfig
}

func NewWithConfig(config SynthesizerConfig) *Synthesizer {
	return &Synthesizer{config: config}
}

// Synthesize produces a grounded answer for the question. A generator
// failure propagates unmodified; no partial answer is fabricated.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, retrieved []models.RetrievalResult) (string, []models.Citation, error) {
	userPrompt := buildUserPrompt(question, retrieved)

	response, err := s.config.Generator.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", nil, err
	}

	answer, citations := parseResponse(response, retrieved)
	if len(citations) == 0 && len(retrieved) > 0 {
		citations = fallbackCitations(retrieved)
	}

	return answer, citations, nil
}

// buildUserPrompt numbers each retrieved chunk with its 1-based ordinal in
// retrieval order. The ordinal is what the model's [n] markers reference.
func buildUserPrompt(question string, retrieved []models.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, res := range retrieved {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, res.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// fallbackCitations synthesizes one citation per retrieved chunk in
// retrieval order, used when the model response yields no parseable
// citations.
func fallbackCitations(retrieved []models.RetrievalResult) []models.Citation {
	citations := make([]models.Citation, len(retrieved))
	for i, res := range retrieved {
		citations[i] = models.Citation{
			Index:      i + 1,
			ChunkID:    res.Chunk.ID,
			PageNumber: pageLabel(res.Chunk),
			Preview:    preview(res.Chunk.Text),
		}
	}
	return citations
}

func pageLabel(chunk models.Chunk) string {
	if chunk.PageNumber == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *chunk.PageNumber)
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLength {
		return text
	}
	return strings.TrimSpace(text[:previewLength]) + "..."
}
