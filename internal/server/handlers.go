package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
	"github.com/ironsheep/floorplan-advisor/internal/session"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the AI Floorplan Analyzer API!"

const maxChatBodyBytes = 1 << 20

// UploadResponse is the body of a successful POST /api/upload.
type UploadResponse struct {
	EdgeDetectionImage string `json:"edge_detection_image"`
	AIResponse         string `json:"ai_response"`
	AudioURL           string `json:"audio_url"`
	DetectedFeatures   string `json:"detected_features"`
	ExtractedText      string `json:"extracted_text"`
	OverlayImage       string `json:"overlay_image,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body of a successful POST /api/chat.
type ChatResponse struct {
	Reply    string `json:"reply"`
	AudioURL string `json:"audio_url"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Context session.Context     `json:"context"`
	History []session.ChatEntry `json:"history"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

// handleUpload runs extraction, recommendation and narration in order.
// Shared state is committed only after all three succeed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, validationError(fmt.Sprintf("Upload exceeds %d bytes.", s.opts.MaxUploadBytes), err))
			return
		}
		s.fail(w, r, validationError("Field 'file' is required.", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, validationError("Failed to read upload.", err))
		return
	}
	s.logger.Debug("received floorplan",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)))

	ctx := r.Context()

	features, err := s.deps.Extractor.ExtractBytes(ctx, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary := features.Summary()

	reply, err := s.deps.Advisor.Advise(ctx, advisor.AnalysisPrompt(summary, features.Text))
	if err != nil {
		s.fail(w, r, collaboratorError(err))
		return
	}

	artifact, err := s.deps.Narrator.Narrate(ctx, reply)
	if err != nil {
		s.fail(w, r, collaboratorError(err))
		return
	}

	s.deps.Store.CommitAnalysis(summary, features.Text, reply)

	writeJSON(w, http.StatusOK, UploadResponse{
		EdgeDetectionImage: features.EdgeDataURI,
		AIResponse:         reply,
		AudioURL:           artifact.URL(),
		DetectedFeatures:   summary,
		ExtractedText:      features.Text,
		OverlayImage:       features.OverlayDataURI,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		s.fail(w, r, validationError("Failed to read request body.", err))
		return
	}

	var req ChatRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		s.fail(w, r, validationError("Request body must be a JSON object.", err))
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.fail(w, r, validationError("Message cannot be empty.", nil))
		return
	}

	ctx := r.Context()
	reply, err := s.deps.Advisor.Advise(ctx, advisor.ChatPrompt(message, s.deps.Store.CurrentContext()))
	if err != nil {
		s.fail(w, r, collaboratorError(err))
		return
	}

	artifact, err := s.deps.Narrator.Narrate(ctx, reply)
	if err != nil {
		s.fail(w, r, collaboratorError(err))
		return
	}

	s.deps.Store.AppendChatTurn(message, reply)

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, AudioURL: artifact.URL()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{
		Context: s.deps.Store.CurrentContext(),
		History: s.deps.Store.History(),
	})
}

// handleFile serves a narrated reply. Unknown and malformed names are 404.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	artifact, err := s.deps.Audio.Lookup(name)
	if err != nil {
		s.fail(w, r, notFoundError("File not found."))
		return
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		s.fail(w, r, notFoundError("File not found."))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", narration.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, artifact.Name, artifact.CreatedAt, f)
}

type healthResponse struct {
	Status string `json:"status"`
	OCR    any    `json:"ocr"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.OCR != nil {
		resp.OCR = s.deps.OCR.Probe(r.Context())
	} else {
		resp.OCR = map[string]bool{"available": false}
	}
	writeJSON(w, http.StatusOK, resp)
}
