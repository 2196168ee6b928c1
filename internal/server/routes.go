package server

import "net/http"

// Endpoint describes one route of the API.
type Endpoint struct {
	Method      string `json:"method"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`

	handler func(*Server) http.HandlerFunc
}

// Endpoints returns every route the server registers.
func Endpoints() []Endpoint {
	return []Endpoint{
		{
			Method:      http.MethodGet,
			Pattern:     "/",
			Description: "Welcome message.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleRoot },
		},
		{
			Method:      http.MethodPost,
			Pattern:     "/api/upload",
			Description: "Analyze an uploaded floorplan (multipart field \"file\") and narrate the recommendation.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleUpload },
		},
		{
			Method:      http.MethodPost,
			Pattern:     "/api/chat",
			Description: "Answer a follow-up question using the last analyzed floorplan as context.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleChat },
		},
		{
			Method:      http.MethodGet,
			Pattern:     "/api/history",
			Description: "Current floorplan context and chat history.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleHistory },
		},
		{
			Method:      http.MethodGet,
			Pattern:     "/file/{name}",
			Description: "Download a narrated reply as audio/mpeg.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleFile },
		},
		{
			Method:      http.MethodGet,
			Pattern:     "/healthz",
			Description: "Liveness and OCR engine status.",
			handler:     func(s *Server) http.HandlerFunc { return s.handleHealth },
		},
	}
}
