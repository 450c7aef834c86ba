package models

// Chunk is a bounded contiguous slice of document text with a stable
// identifier. Chunks are immutable once created and live for exactly one
// index generation.
type Chunk struct {
	ID            string `json:"id"`
	PageNumber    *int   `json:"page_number,omitempty"`
	Text          string `json:"text"`
	TokenEstimate int    `json:"token_estimate"`
}

// Page is one page of extracted document text, produced by the text
// extraction collaborator before chunking.
type Page struct {
	Number int
	Text   string
}

// RetrievalResult pairs a chunk with its similarity score for one query.
// Results are produced fresh per query and never persisted.
type RetrievalResult struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float32 `json:"similarity"`
}

// Citation points from a claim in the answer back to the supporting chunk.
// Index is 1-based and matches the [n] marker in the answer text.
type Citation struct {
	Index      int    `json:"index"`
	ChunkID    string `json:"chunk_id"`
	PageNumber string `json:"page_number"`
	Preview    string `json:"preview"`
}

// Answer is the full result of one query.
type Answer struct {
	Text            string            `json:"answer"`
	Citations       []Citation        `json:"citations"`
	RetrievedChunks []RetrievalResult `json:"retrieved_chunks"`
}

// DocumentSummary describes the outcome of one ingestion.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	NumChunks  int    `json:"num_chunks"`
	NumPages   int    `json:"num_pages,omitempty"`
}
