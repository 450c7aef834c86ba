package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/engine"
	"github.com/xhad/docqa/pkg/extract"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

const maxUploadBytes = 32 << 20

type Config struct {
	Addr string
	TopK int
}

// Server is the thin HTTP surface over the retrieval core: one document
// upload endpoint, one question endpoint, and a websocket ask channel.
type Server struct {
	config Config
	engine *engine.Engine
	logger zerolog.Logger
}

func New(config Config, eng *engine.Engine, logger zerolog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.TopK == 0 {
		config.TopK = 5
	}
	return &Server{config: config, engine: eng, logger: logger}
}

func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.logger.Info().Str("addr", s.config.Addr).Msg("starting server")
	return http.ListenAndServe(s.config.Addr, mux)
}

// handleUpload accepts one multipart document, extracts its text, and
// replaces the active index generation with it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// The pdf reader needs a seekable file, so spool the upload to disk.
	tmp, err := os.CreateTemp("", "docqa-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		s.internalError(w, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		s.internalError(w, err)
		return
	}
	tmp.Close()

	extracted, err := extract.FromFile(tmp.Name())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var summary models.DocumentSummary
	if extracted.Paged() {
		summary, err = s.engine.IngestPages(r.Context(), extracted.Pages)
	} else {
		summary, err = s.engine.IngestText(r.Context(), extracted.Text)
	}
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	s.logger.Info().Str("filename", header.Filename).Int("chunks", summary.NumChunks).Msg("document uploaded")
	s.writeJSON(w, http.StatusOK, summary)
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.config.TopK
	}

	answer, err := s.engine.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, answer)
}

// handleWebSocket runs an ask loop over one connection: each text message
// is a question, each reply a full answer or an error payload.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req askRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Question == "" {
			conn.WriteJSON(map[string]string{"error": "question is required"})
			continue
		}
		if req.TopK <= 0 {
			req.TopK = s.config.TopK
		}

		answer, err := s.engine.Query(r.Context(), req.Question, req.TopK)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": userMessage(err)})
			continue
		}
		if err := conn.WriteJSON(answer); err != nil {
			return
		}
	}
}

// writeQueryError maps the error taxonomy onto HTTP statuses: NotReady and
// validation problems are client-correctable, rate limits and upstream
// failures ask the client to retry later, invariant violations are logged
// and reported as generic internal failures.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	var mismatch *models.DimensionMismatchError
	switch {
	case errors.Is(err, models.ErrNotReady):
		s.writeError(w, http.StatusConflict, "no document uploaded yet, upload one first")
	case errors.Is(err, models.ErrRateLimited):
		s.writeError(w, http.StatusServiceUnavailable, "the model is rate limited, try again shortly")
	case errors.As(err, &mismatch):
		s.logger.Error().Err(err).Msg("index invariant violation")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	default:
		var upstream *models.UpstreamError
		if errors.As(err, &upstream) {
			s.writeError(w, http.StatusBadGateway, upstream.Error())
			return
		}
		s.internalError(w, err)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotReady):
		return "no document uploaded yet, upload one first"
	case errors.Is(err, models.ErrRateLimited):
		return "the model is rate limited, try again shortly"
	default:
		return err.Error()
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
