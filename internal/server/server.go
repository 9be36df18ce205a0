// Package server exposes the simulation pipeline over HTTP.
//
// Routes:
//
//	GET    /healthz                                  liveness and build info
//	POST   /v1/simulate                              run a scenario
//	GET    /v1/reports                               list stored reports
//	GET    /v1/reports/{id}                          fetch a stored report
//	DELETE /v1/reports/{id}                          delete a stored report
//	GET    /v1/reports/{id}/frames/{frame}           one frame of a report
//	GET    /v1/reports/{id}/frames/{frame}/diagram   plan diagram (?format=svg|dot|png)
//
// POST /v1/simulate takes either a JSON envelope {"scenario": ..., "options": ...}
// or, with Content-Type application/toml, a bare TOML scenario with options in
// the query string.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/hwcomposer/pkg/observability"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

const shutdownTimeout = 5 * time.Second

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router
}

// New builds a server around runner.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{runner: runner, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/simulate", s.handleSimulate)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetReport)
				r.Delete("/", s.handleDeleteReport)
				r.Get("/frames/{frame}", s.handleGetFrame)
				r.Get("/frames/{frame}/diagram", s.handleDiagram)
			})
		})
	})
	return r
}

// instrument logs each request and reports it to the server hooks under
// its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.Server().OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.Server().OnResponse(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", elapsed)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
