package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"ictengine/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the process's Prometheus metrics over HTTP.
type Server struct {
	port   int
	logger core.ILogger
	srv    *http.Server
}

// NewServer constructs a metrics server bound to port.
func NewServer(port int, logger core.ILogger) *Server {
	return &Server{port: port, logger: logger.WithField("component", "metrics_server")}
}

// Start begins serving /metrics in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("starting metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
