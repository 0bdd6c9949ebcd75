// Package chi exposes the admin HTTP surface of the batch job: a health
// endpoint over the warehouse and embedding provider, and Prometheus metrics.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger checks warehouse connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider reachability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

const healthCheckTimeout = 5 * time.Second

// Server serves /healthz and /metrics while the batch run is in flight.
type Server struct {
	warehouse Pinger
	embedder  EmbeddingChecker
	logger    *zap.Logger
}

// NewServer creates the admin server. Either dependency may be nil, in which
// case its check is skipped.
func NewServer(warehouse Pinger, embedder EmbeddingChecker, logger *zap.Logger) *Server {
	return &Server{warehouse: warehouse, embedder: embedder, logger: logger}
}

// Router builds the admin router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.jsonRecoverer())
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy, Checks: map[string]string{}}

	if s.warehouse != nil {
		resp.Checks["warehouse"] = statusHealthy
		if err := s.warehouse.Ping(ctx); err != nil {
			s.logger.Warn("Warehouse health check failed", zap.Error(err))
			resp.Checks["warehouse"] = statusDegraded
			resp.Status = statusDegraded
		}
	}
	if s.embedder != nil {
		resp.Checks["embedding"] = statusHealthy
		if err := s.embedder.HealthCheck(ctx); err != nil {
			s.logger.Warn("Embedding health check failed", zap.Error(err))
			resp.Checks["embedding"] = statusDegraded
			resp.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if resp.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Serve runs the admin server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonRecoverer returns JSON instead of a plain text stacktrace.
func (s *Server) jsonRecoverer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					s.logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
