// Package server exposes labelkit over HTTP.
//
// Routes:
//
//	POST   /api/print             raw ZPL print boundary
//	POST   /api/labels/zpl        render articles to ZPL
//	POST   /api/labels/preview    SVG preview of the first label
//	POST   /api/labels/print      render articles and print them
//	GET    /api/printers          configured printers
//	GET    /api/templates         list saved templates
//	POST   /api/templates         create or update a template
//	GET    /api/templates/{id}    fetch one template
//	DELETE /api/templates/{id}    delete a template
//	GET    /healthz               liveness
//	GET    /metrics               Prometheus metrics (when configured)
//
// Failures are JSON bodies of the form {"ok": false, "error": "...", "code": "..."}
// with the status from [errors.HTTPStatus]: 400 for invalid input, 502 when
// the printer cannot be reached or written to, 504 on timeout.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/labelkit/pkg/buildinfo"
	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/templates"
)

// DefaultRequestTimeout bounds a request when Options.RequestTimeout is zero.
const DefaultRequestTimeout = 30 * time.Second

// maxBodyBytes caps request bodies. A few thousand articles fit easily.
const maxBodyBytes = 8 << 20

// Options configures a Server.
type Options struct {
	Runner    *pipeline.Runner
	Templates templates.Store
	// Config supplies named printers and label defaults. Nil uses
	// config.Defaults().
	Config *config.Config
	// Metrics is mounted at /metrics when set.
	Metrics        http.Handler
	Logger         *log.Logger
	RequestTimeout time.Duration
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	runner    *pipeline.Runner
	templates templates.Store
	config    *config.Config
	metrics   http.Handler
	logger    *log.Logger
	validate  *validator.Validate
	timeout   time.Duration
}

// New creates a server. A nil Runner gets an uncached default runner and a
// nil template store an in-memory one.
func New(opts Options) *Server {
	s := &Server{
		runner:    opts.Runner,
		templates: opts.Templates,
		config:    opts.Config,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		validate:  newValidator(),
		timeout:   opts.RequestTimeout,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, nil, s.logger)
	}
	if s.templates == nil {
		s.templates = templates.NewMemoryStore()
	}
	if s.config == nil {
		s.config = config.Defaults()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/print", s.handlePrint)

		r.Route("/labels", func(r chi.Router) {
			r.Post("/zpl", s.handleLabelsZPL)
			r.Post("/preview", s.handleLabelsPreview)
			r.Post("/print", s.handleLabelsPrint)
		})

		r.Get("/printers", s.handlePrinters)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleSaveTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "version", buildinfo.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
