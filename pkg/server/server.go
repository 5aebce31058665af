package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aigoflow/relay-service/internal/handlers"
	"github.com/aigoflow/relay-service/internal/services"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpAddr     string
	relayService *services.RelayService
}

func NewServer(httpAddr string, relayService *services.RelayService) *Server {
	return &Server{
		httpAddr:     httpAddr,
		relayService: relayService,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully so
// in-flight requests finish before the caller tears anything else down.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	generateHandler := handlers.NewGenerateHandler(s.relayService)
	generateHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    s.httpAddr,
		Handler: mux,
	}

	slog.Info("HTTP server starting",
		"addr", s.httpAddr,
		"endpoints", []string{"/generate", "/healthz", "/stats"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != http.ErrServerClosed {
		return err
	}
	return nil
}
