// Package web serves the extraction engine and decryption runs over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/joestump/client-radar/api"
	"github.com/joestump/client-radar/internal/config"
	"github.com/joestump/client-radar/internal/decrypt"
	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/hub"
)

// Decryptor runs one decryption under a caller-chosen run ID.
// *decrypt.Aggregator satisfies it.
type Decryptor interface {
	RunAs(ctx context.Context, runID string) (*decrypt.Result, error)
}

// ServerOption configures optional Server features.
type ServerOption func(*Server)

// WithDecryptor replaces how a decryptor is obtained for each run.
func WithDecryptor(f func() (Decryptor, error)) ServerOption {
	return func(s *Server) { s.newDecryptor = f }
}

// Server is the HTTP API server.
type Server struct {
	cfg          config.Config
	engine       *extract.Engine
	hub          *hub.Hub
	runs         *runRegistry
	newDecryptor func() (Decryptor, error)
	log          zerolog.Logger
	mux          *http.ServeMux
	server       *http.Server
}

// New creates a server. Decryption output is published to h.
func New(cfg config.Config, h *hub.Hub, log zerolog.Logger, opts ...ServerOption) *Server {
	cands, roles := cfg.Profile()
	s := &Server{
		cfg: cfg,
		engine: extract.New(
			extract.WithCandidates(cands),
			extract.WithRoles(roles),
			extract.WithLimit(cfg.PostLimit),
			extract.WithLogger(log),
		),
		hub:  h,
		runs: newRunRegistry(maxRetainedRuns, h),
		log:  log,
		mux:  http.NewServeMux(),
	}
	s.newDecryptor = s.defaultDecryptor
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) defaultDecryptor() (Decryptor, error) {
	path, err := decrypt.Locate(s.cfg.DecryptorName, s.cfg.DecryptorPath)
	if err != nil {
		return nil, &decrypt.ProcessError{Name: s.cfg.DecryptorName, Err: err}
	}
	return decrypt.NewAggregator(&decrypt.ExecLauncher{Path: path},
		decrypt.WithName(s.cfg.DecryptorName),
		decrypt.WithHub(s.hub),
		decrypt.WithLogger(s.log),
		decrypt.WithRedactor(decrypt.NewRedactionFilter(s.log)),
	), nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start begins serving HTTP requests. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Decryption runs already started keep
// going until the helper exits.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleAPIHealth)
	s.mux.HandleFunc("GET /api/v1/contacts", s.handleAPIContacts)
	s.mux.HandleFunc("GET /api/v1/posts", s.handleAPIPosts)
	s.mux.HandleFunc("GET /api/v1/inspect", s.handleAPIInspect)
	s.mux.HandleFunc("POST /api/v1/decrypt", s.handleAPIStartDecrypt)
	s.mux.HandleFunc("GET /api/v1/decrypt/{id}", s.handleAPIGetDecrypt)
	s.mux.HandleFunc("GET /api/v1/decrypt/{id}/stream", s.handleDecryptStream)

	s.mux.HandleFunc("GET /api/openapi.yaml", s.handleOpenAPISpec)
}

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.OpenAPISpec)
}
