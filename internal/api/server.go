// Package api serves the read-side HTTP endpoints over the store.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/soldag/soldag/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is the API unit run under the supervisor.
type Server struct {
	addr    string
	handler *Handler
	logger  *slog.Logger
}

func NewServer(addr string, handler *Handler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger.With(slog.String("unit", "api")),
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.handler.Register(mux)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server shutdown incomplete", "err", err)
		}
		<-errCh
		s.logger.Info("API server stopped")
		return ctx.Err()
	}
}
