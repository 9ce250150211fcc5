package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/djienne/deltaarb/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer exposes /metrics (Prometheus) and /healthz, adapted from the
// original metrics-only server to also serve liveness. It implements
// Runner so App.Run manages its lifecycle alongside the orchestrator.
type HTTPServer struct {
	port   int
	logger core.ILogger
}

// NewHTTPServer builds an HTTPServer bound to port.
func NewHTTPServer(port int, logger core.ILogger) *HTTPServer {
	return &HTTPServer{port: port, logger: logger.WithField("component", "http_server")}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "port", s.port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("stopping http server")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
