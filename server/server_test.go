package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/chunker"
	"github.com/xhad/docqa/pkg/engine"
	"github.com/xhad/docqa/pkg/index"
	"github.com/xhad/docqa/pkg/retriever"
	"github.com/xhad/docqa/pkg/synth"
)

type cannedGenerator struct {
	response string
}

func (g *cannedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.response, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	idx := index.NewWithConfig(index.IndexConfig{Logger: zerolog.Nop()})
	ch := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})
	r := retriever.NewLexicalRetriever(idx)
	s := synth.NewWithConfig(synth.SynthesizerConfig{
		Generator: &cannedGenerator{response: "Answer: the answer [1]."},
	})
	eng := engine.New(engine.EngineConfig{Logger: zerolog.Nop()}, ch, nil, idx, r, s)
	return New(Config{TopK: 3}, eng, zerolog.Nop())
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestServer_AskBeforeUpload(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"anything?"}`))
	rec := httptest.NewRecorder()
	srv.handleAsk(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no document uploaded yet")
}

func TestServer_UploadThenAsk(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, "doc.txt", "The warranty lasts two years.\n\nReturns are free within 30 days."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary models.DocumentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Greater(t, summary.NumChunks, 0)
	assert.NotEmpty(t, summary.DocumentID)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"how long is the warranty?"}`))
	srv.handleAsk(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var answer models.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "the answer [1].", answer.Text)
	assert.NotEmpty(t, answer.Citations)
	assert.NotEmpty(t, answer.RetrievedChunks)
}

func TestServer_UploadUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, "doc.exe", "nope"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file format")
}

func TestServer_AskValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_WebSocketEmptyQuestionRejected(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, "doc.txt", "Some document body."))
	require.Equal(t, http.StatusOK, rec.Code)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"question": ""}))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "question is required", reply["error"])

	// The connection stays usable for a real question afterwards.
	require.NoError(t, conn.WriteJSON(map[string]string{"question": "what is in the document?"}))

	var answer models.Answer
	require.NoError(t, conn.ReadJSON(&answer))
	assert.Equal(t, "the answer [1].", answer.Text)
}

func TestServer_UploadReplacesDocument(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, "a.txt", "First document about apples."))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, "b.txt", "Second document about oranges."))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"oranges"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var answer models.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	require.NotEmpty(t, answer.RetrievedChunks)
	assert.Contains(t, answer.RetrievedChunks[0].Chunk.Text, "oranges")
}
