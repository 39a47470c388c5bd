// Package server exposes certificate generation over HTTP.
//
// Endpoints:
//
//	GET    /health                     liveness probe
//	GET    /fonts                      available fonts
//	POST   /preview                    render one certificate inline
//	POST   /generate                   start an asynchronous generation job
//	GET    /jobs/{jobID}               job status and progress
//	GET    /jobs/{jobID}/artifacts/{name}  download a finished archive
//	DELETE /jobs/{jobID}               cancel a running job
//	GET    /runs                       recent run history (when configured)
//	GET    /runs/{runID}               one archived run
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/certifyhq/certgen/pkg/fontcat"
	"github.com/certifyhq/certgen/pkg/history"
	"github.com/certifyhq/certgen/pkg/jobstore"
)

// Default server limits.
const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 64 << 20
	shutdownGrace         = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr        string
	FontDir     string
	ArtifactDir string // staged archives live here, one subdirectory per job

	// Workers and Quality default per-run when zero.
	Workers int
	Quality int

	MaxUploadBytes int64

	Jobs    jobstore.Store
	History history.Store // optional
	Logger  *log.Logger
}

// Server handles HTTP generation requests. Generation runs execute on
// background goroutines; clients poll job state through the job store.
type Server struct {
	cfg    Config
	fonts  *fontcat.Catalog
	jobs   jobstore.Store
	hist   history.Store
	logger *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a Server, applying config defaults.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobstore.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{
		cfg:     cfg,
		fonts:   fontcat.New(cfg.FontDir),
		jobs:    cfg.Jobs,
		hist:    cfg.History,
		logger:  cfg.Logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", s.handleHealth)
	r.Get("/fonts", s.handleFonts)
	r.Post("/preview", s.handlePreview)
	r.Post("/generate", s.handleGenerate)
	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Get("/", s.handleJobStatus)
		r.Delete("/", s.handleJobCancel)
		r.Get("/artifacts/{name}", s.handleArtifact)
	})
	if s.hist != nil {
		r.Get("/runs", s.handleRunList)
		r.Get("/runs/{runID}", s.handleRunGet)
	}
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests and cancels running jobs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.cancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// registerCancel tracks a running job's cancel function.
func (s *Server) registerCancel(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
}

// releaseCancel removes (and returns) a job's cancel function.
func (s *Server) releaseCancel(jobID string) context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel := s.cancels[jobID]
	delete(s.cancels, jobID)
	return cancel
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
}
