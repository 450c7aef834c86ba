package synth

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/docqa/internal/models"
)

var (
	answerSection    = regexp.MustCompile(`(?s)Answer:\s*(.*?)\s*(?:Citations:|$)`)
	citationsSection = regexp.MustCompile(`(?s)Citations:\s*(.*)$`)
	citationLine     = regexp.MustCompile(`\[C(\d+)\s*\|\s*Page\s*([^\]]+)\]`)
)

// parseResponse splits the model's free-form response into the answer text
// and whatever citations can be recovered from it. Parsing is best-effort;
// zero citations is an expected outcome handled by the caller's fallback.
func parseResponse(response string, retrieved []models.RetrievalResult) (string, []models.Citation) {
	answer := response
	if m := answerSection.FindStringSubmatch(response); m != nil {
		answer = m[1]
	} else if m := citationsSection.FindStringSubmatchIndex(response); m != nil {
		answer = response[:m[0]]
	}
	answer = normalizeMarkers(strings.TrimSpace(answer))

	var citations []models.Citation
	if m := citationsSection.FindStringSubmatch(response); m != nil {
		citations = parseCitationLines(m[1], retrieved)
	}

	return answer, citations
}

// parseCitationLines resolves [C<n> | Page <p>] markers against the
// retrieved chunks. A marker whose ordinal falls outside the retrieved list
// is dropped; the preview always comes from the chunk itself so a
// hallucinated model quote cannot leak into the citation.
func parseCitationLines(section string, retrieved []models.RetrievalResult) []models.Citation {
	var citations []models.Citation
	seen := make(map[int]bool)

	for _, match := range citationLine.FindAllStringSubmatch(section, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(retrieved) || seen[n] {
			continue
		}
		seen[n] = true

		chunk := retrieved[n-1].Chunk
		pageLabel := strings.TrimSpace(match[2])
		if pageLabel == "" {
			pageLabel = "-"
		}

		citations = append(citations, models.Citation{
			Index:      n,
			ChunkID:    chunk.ID,
			PageNumber: pageLabel,
			Preview:    preview(chunk.Text),
		})
	}

	return citations
}

// normalizeMarkers rewrites any in-answer [C<n> | Page <p>] marker to the
// clean [n] form.
func normalizeMarkers(answer string) string {
	return citationLine.ReplaceAllStringFunc(answer, func(marker string) string {
		m := citationLine.FindStringSubmatch(marker)
		return "[" + m[1] + "]"
	})
}
