package info

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scaledemo/internal/cluster"
)

const (
	RouteIndex   = "/"
	RouteInfo    = "/api/info"
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

var ErrRenderFailed = func(err error) error { return fmt.Errorf("failed to render response: %s", err) }

// Server serves the identity dashboard and its JSON twin.
type Server struct {
	cfg      Config
	gatherer *Gatherer
	nodes    cluster.Counter
	registry *prometheus.Registry
	metrics  *Metrics
	router   chi.Router
	server   *http.Server
}

type Option func(*Server)

func WithGatherer(g *Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithNodeCounter makes the dashboard state how many nodes the cluster has.
func WithNodeCounter(c cluster.Counter) Option {
	return func(s *Server) { s.nodes = c }
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// Returns a new Server with validated configuration and routes (and error)
func New(config Config, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{cfg: config}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry)
	if s.gatherer == nil {
		s.gatherer = NewGatherer(config.ResolveTimeout)
	}
	if s.gatherer.ResolveFailures == nil {
		s.gatherer.ResolveFailures = s.metrics.ResolveFailures
	}

	s.router = s.routes()
	s.server = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.With(s.metrics.instrument(RouteIndex)).Get(RouteIndex, s.handleIndex)
	r.With(s.metrics.instrument(RouteInfo)).Get(RouteInfo, s.handleInfo)
	r.Get(RouteHealth, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	if s.cfg.Metrics {
		r.Method(http.MethodGet, RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Runs the server on ListenAddress:ListenPort until Stop is called.
func (s *Server) Run() error {
	defer s.server.Close()

	slog.Info("info server starting at " + s.server.Addr)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

// Gracefully stops the server, if it cannot gracefully shut down, it will stop it immediately
func (s *Server) Stop() error {
	defer s.server.Close()
	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second*10)
	defer cancelFunc()

	slog.Info("info server stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := Page{
		Snapshot:  s.gatherer.Snapshot(r.Context()),
		NodeCount: s.nodeCount(r.Context()),
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, page); err != nil {
		slog.Error(ErrRenderFailed(err).Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, s.gatherer.Snapshot(r.Context())); err != nil {
		slog.Error(ErrRenderFailed(err).Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

// nodeCount returns 0 when the count is unknown, which drops it from the page.
func (s *Server) nodeCount(ctx context.Context) int {
	if s.nodes == nil {
		return 0
	}
	n, err := s.nodes.Count(ctx)
	if err != nil {
		slog.Warn("could not count cluster nodes", "error", err)
		s.metrics.NodeCountErrors.Inc()
		return 0
	}
	return n
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
