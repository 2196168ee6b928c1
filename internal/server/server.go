package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
	"github.com/ironsheep/floorplan-advisor/internal/ocr"
	"github.com/ironsheep/floorplan-advisor/internal/session"
)

// Extractor derives floorplan features from an uploaded file.
type Extractor interface {
	ExtractBytes(ctx context.Context, data []byte) (*floorplan.Features, error)
}

// Narrator converts a reply to an audio artifact.
type Narrator interface {
	Narrate(ctx context.Context, text string) (narration.Artifact, error)
}

// AudioStore resolves artifact names for download.
type AudioStore interface {
	Lookup(name string) (narration.Artifact, error)
}

// OCRProber reports OCR engine health.
type OCRProber interface {
	Probe(ctx context.Context) ocr.Info
}

// Deps are the collaborators behind the HTTP handlers.
type Deps struct {
	Extractor Extractor
	Advisor   advisor.Advisor
	Narrator  Narrator
	Audio     AudioStore
	Store     *session.Store

	// OCR is optional; without it /healthz reports OCR as unknown.
	OCR    OCRProber
	Logger *zap.Logger
}

// Options configures the HTTP surface.
type Options struct {
	FrontendOrigin string
	MaxUploadBytes int64
}

// Server serves the floorplan analysis API.
type Server struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// DefaultMaxUploadBytes caps uploads when Options.MaxUploadBytes is unset.
const DefaultMaxUploadBytes = 20 << 20

// New creates a Server. Store defaults to a fresh session store.
func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = session.NewStore()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.FrontendOrigin == "" {
		opts.FrontendOrigin = "http://localhost:3000"
	}
	return &Server{deps: deps, opts: opts, logger: deps.Logger}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.opts.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	for _, e := range Endpoints() {
		r.Method(e.Method, e.Pattern, e.handler(s))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("floorplan advisor listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("floorplan advisor stopped")
	return nil
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
