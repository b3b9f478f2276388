// Package web provides the HTTP server: the JSON API over the address
// registry and the embedded map page.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evcraddock/canvass/internal/address"
	"github.com/evcraddock/canvass/internal/auth"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/logging"
	"github.com/evcraddock/canvass/internal/metrics"
	"github.com/evcraddock/canvass/internal/outcome"
)

//go:embed static/*
var staticFS embed.FS

// ReverseGeocoder turns a map click into a postal address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error)
}

// Deps are the collaborators the server needs. Registry is required; the
// rest are optional.
type Deps struct {
	Registry *address.Registry
	Filter   *outcome.Filter
	Reverse  ReverseGeocoder

	// APIKeys, when set, protects every /api route with bearer keys.
	APIKeys *auth.APIKeyStore

	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Server is the canvass HTTP server.
type Server struct {
	registry *address.Registry
	filter   *outcome.Filter
	reverse  ReverseGeocoder
	apiKeys  *auth.APIKeyStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   chi.Router
}

// NewServer builds the router.
func NewServer(d Deps) (*Server, error) {
	if d.Registry == nil {
		return nil, errors.New("registry is required")
	}

	s := &Server{
		registry: d.Registry,
		filter:   d.Filter,
		reverse:  d.Reverse,
		apiKeys:  d.APIKeys,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if s.filter == nil {
		s.filter = outcome.NewFilter()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.handleHealth)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	r.Get("/", s.handleIndex(staticContent))

	r.Route("/api", func(api chi.Router) {
		if s.apiKeys != nil {
			api.Use(func(next http.Handler) http.Handler {
				return auth.RequireAPIKey(s.apiKeys, next)
			})
		}
		s.registerAPI(api)
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web UI", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]interface{}{
		"status":    "ok",
		"addresses": s.registry.Len(),
	}, http.StatusOK)
}

func (s *Server) handleIndex(static fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := fs.ReadFile(static, "index.html")
		if err != nil {
			http.Error(w, "page not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			s.logger.Warn("writing index", "error", err)
		}
	}
}
