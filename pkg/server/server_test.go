package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aigoflow/relay-service/internal/backend"
	"github.com/aigoflow/relay-service/internal/config"
	"github.com/aigoflow/relay-service/internal/services"
	"github.com/aigoflow/relay-service/internal/telemetry"
)

func newTestServer(t *testing.T, addr string) *Server {
	t.Helper()
	cfg := &config.Config{
		BackendURL:     "http://localhost:11434",
		ModelName:      "llama3",
		LogPath:        filepath.Join(t.TempDir(), "telemetry.csv"),
		QueueSize:      8,
		SampleInterval: 100 * time.Millisecond,
		StatsInterval:  time.Second,
	}

	writer := telemetry.NewWriter(cfg.LogPath, cfg.QueueSize)
	writer.Start()
	t.Cleanup(func() { _ = writer.Close() })

	monitoring, err := services.NewMonitoringService(cfg, writer)
	if err != nil {
		t.Fatalf("Failed to create monitoring service: %v", err)
	}

	relay := services.NewRelayService(cfg, backend.New(cfg.BackendURL, cfg.ModelName), writer, monitoring, 0)
	return NewServer(addr, relay)
}

func TestStartReturnsCleanlyOnCancel(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Give the listener a moment to come up before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Cancelled server should stop cleanly, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not stop after cancellation")
	}
}

func TestStartSurfacesListenError(t *testing.T) {
	srv := newTestServer(t, "256.0.0.1:99999")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected a listen error for an invalid address")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not report the listen failure")
	}
}
