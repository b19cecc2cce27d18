package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// ShutdownGrace bounds listener shutdown and every drain hook together
const ShutdownGrace = 30 * time.Second

// Server serves the query surface until its context ends
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	grace      time.Duration
	drains     []func(context.Context) error
}

// New creates a new API server on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log.WithComponent("api"),
		grace:  ShutdownGrace,
	}
}

// OnShutdown registers fn to run after the listener has closed.
// Hooks run in registration order and share the grace period.
func (s *Server) OnShutdown(fn func(ctx context.Context) error) {
	s.drains = append(s.drains, fn)
}

// Run listens until ctx is done, then shuts down gracefully.
// A listen failure is returned immediately; hook errors are only logged.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.logger.WithField("addr", ln.Addr().String()).Info("API server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	s.logger.Info("Shutting down API server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	for _, drain := range s.drains {
		if err := drain(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Shutdown hook did not finish in time")
		}
	}
	s.logger.Info("API server stopped")
	return nil
}
