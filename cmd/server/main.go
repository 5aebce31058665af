package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aigoflow/relay-service/internal/backend"
	"github.com/aigoflow/relay-service/internal/config"
	"github.com/aigoflow/relay-service/internal/services"
	"github.com/aigoflow/relay-service/internal/telemetry"
	"github.com/aigoflow/relay-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("Relay starting",
		"model_name", cfg.ModelName,
		"backend_url", cfg.BackendURL,
		"http_addr", cfg.HTTPAddr,
		"log_path", cfg.LogPath)

	// Start telemetry log writer
	_ = os.MkdirAll(filepath.Dir(cfg.LogPath), 0755)
	writer := telemetry.NewWriter(cfg.LogPath, cfg.QueueSize)
	writer.Start()

	// Optional NATS telemetry mirror
	monitoring, err := services.NewMonitoringService(cfg, writer)
	if err != nil {
		slog.Warn("Monitoring disabled", "nats_url", cfg.NatsURL, "error", err)
		monitoring = nil
	}
	defer monitoring.Close()

	// Probe model memory baseline before accepting traffic
	be := backend.New(cfg.BackendURL, cfg.ModelName)
	prober := services.NewProber(be, cfg.WarmupSettle)

	slog.Info("Measuring model memory baseline", "backend_url", cfg.BackendURL)
	modelMemory := prober.MeasureModelMemory(context.Background())

	relayService := services.NewRelayService(cfg, be, writer, monitoring, modelMemory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitoring.Start(ctx)

	httpServer := server.NewServer(cfg.HTTPAddr, relayService)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start(ctx)
	}()

	slog.Info("Relay ready to accept requests",
		"http_addr", cfg.HTTPAddr,
		"model_name", cfg.ModelName,
		"model_memory_bytes", modelMemory)

	// Graceful shutdown: let in-flight requests finish, then drain the
	// telemetry queue.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down relay")
	cancel()
	if err := <-serverErr; err != nil {
		slog.Error("HTTP server failed", "error", err)
	}
	if err := writer.Close(); err != nil {
		slog.Error("Failed to drain telemetry queue", "error", err)
	}
}
