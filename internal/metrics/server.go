package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okeev/mailsched/internal/ipfilter"
)

// Server serves Prometheus metrics over HTTP
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
	addr       string
	path       string
	logger     *slog.Logger
	filter     *ipfilter.Filter
}

// NewServer creates a new metrics HTTP server. allowedIPs is an optional list
// of IPs or CIDRs permitted to scrape /metrics; empty allows all.
func NewServer(m *Metrics, addr, path string, allowedIPs []string, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":9090"
	}
	if path == "" {
		path = "/metrics"
	}

	filter := ipfilter.New(allowedIPs, logger)
	if filter.Enabled() {
		logger.Info("metrics IP filtering enabled", "allowed_networks", filter.Count())
	}

	return &Server{
		metrics: m,
		addr:    addr,
		path:    path,
		logger:  logger,
		filter:  filter,
	}
}

// handler builds the HTTP routing for the metrics server
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	promHandler := promhttp.HandlerFor(
		s.metrics.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	mux.Handle(s.path, s.filter.Middleware(promHandler))

	// Health check endpoint (no IP filtering - useful for load balancers)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

// ListenAndServe starts the metrics HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.handler(),
	}

	s.logger.Info("starting metrics server", "addr", s.addr, "path", s.path)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}
