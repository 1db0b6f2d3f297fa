package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/pkg/api/docs"
	"github.com/riftline/evmsync/pkg/config"
)

var _ = docs.SwaggerInfo

const shutdownCtxTimeout = 10 * time.Second

// Server is the evmsync process's health/status HTTP surface: the full
// per-event query API spec.md scopes out stays out here too (see
// pkg/store.Table for the record-store CRUD surface instead).
type Server struct {
	config *config.APIConfig
	server *http.Server
	log    *logger.Logger
}

// NewServer creates a new API server serving health and status endpoints
// over status.
func NewServer(cfg *config.APIConfig, status StatusProvider, log *logger.Logger) *Server {
	handler := NewHandler(status, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /api/v1/status", handler.Status)
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
	))

	var h http.Handler = mux
	h = RecoveryMiddleware(log)(h)
	h = LoggingMiddleware(log)(h)

	if cfg.CORS.Enabled {
		h = CORSMiddleware(cfg.CORS.AllowedOrigins)(h)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}

	return &Server{
		config: cfg,
		server: httpServer,
		log:    log,
	}
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API server is disabled")
		return nil
	}

	s.log.Infof("Starting API server on %s", s.config.ListenAddress)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("API server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownCtxTimeout)
	defer cancel()

	s.log.Info("Shutting down API server...")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown error: %w", err)
	}

	s.log.Info("API server stopped")
	return nil
}
