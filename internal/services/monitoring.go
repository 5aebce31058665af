package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/relay-service/internal/config"
	"github.com/aigoflow/relay-service/internal/models"
	"github.com/aigoflow/relay-service/internal/telemetry"
)

// MonitoringService mirrors telemetry onto NATS subjects so external
// monitors (cmd/monitor) can watch the relay live. Entirely optional:
// a nil *MonitoringService is valid and all methods are no-ops beyond
// counter bookkeeping, so the relay works without a NATS server.
type MonitoringService struct {
	nats   *nats.Conn
	cfg    *config.Config
	writer *telemetry.Writer

	requestCount int64 // atomic
	errorCount   int64 // atomic
}

// StatsReport is the periodic rolling summary published on
// telemetry.stats.<model>.
type StatsReport struct {
	ModelName      string    `json:"model_name"`
	Requests       int64     `json:"requests"`
	Errors         int64     `json:"errors"`
	RecordsWritten int64     `json:"records_written"`
	RecordsDropped int64     `json:"records_dropped"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewMonitoringService connects to NATS when a URL is configured.
// Without one the service still tracks counters but publishes nothing.
func NewMonitoringService(cfg *config.Config, writer *telemetry.Writer) (*MonitoringService, error) {
	if cfg.NatsURL == "" {
		return &MonitoringService{cfg: cfg, writer: writer}, nil
	}
	conn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &MonitoringService{
		nats:   conn,
		cfg:    cfg,
		writer: writer,
	}, nil
}

// Start publishes rolling stats on a ticker until ctx is cancelled.
// A no-op when NATS is not configured.
func (m *MonitoringService) Start(ctx context.Context) {
	if m == nil || m.nats == nil {
		return
	}
	slog.Info("Starting telemetry monitoring publisher",
		"subject", m.statsSubject(),
		"interval", m.cfg.StatsInterval)
	go m.publishStatsLoop(ctx)
}

func (m *MonitoringService) publishStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishStats()
		}
	}
}

func (m *MonitoringService) publishStats() {
	report := StatsReport{
		ModelName:      m.cfg.ModelName,
		Requests:       m.Requests(),
		Errors:         m.Errors(),
		RecordsWritten: m.writer.Written(),
		RecordsDropped: m.writer.Dropped(),
		Timestamp:      time.Now(),
	}
	data, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to marshal stats report", "error", err)
		return
	}
	if err := m.nats.Publish(m.statsSubject(), data); err != nil {
		slog.Warn("Failed to publish stats report", "error", err)
	}
}

// PublishRecord mirrors one telemetry record to NATS, fire-and-forget.
func (m *MonitoringService) PublishRecord(rec *models.TelemetryRecord) {
	if m == nil || m.nats == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Failed to marshal telemetry record", "error", err)
		return
	}
	subject := fmt.Sprintf("telemetry.requests.%s", m.cfg.ModelName)
	if err := m.nats.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish telemetry record", "subject", subject, "error", err)
	}
}

func (m *MonitoringService) statsSubject() string {
	return fmt.Sprintf("telemetry.stats.%s", m.cfg.ModelName)
}

// IncrementRequests atomically bumps the served-request counter.
func (m *MonitoringService) IncrementRequests() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.requestCount, 1)
}

// IncrementErrors atomically bumps the transport-error counter.
func (m *MonitoringService) IncrementErrors() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.errorCount, 1)
}

// Requests returns the served-request count.
func (m *MonitoringService) Requests() int64 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt64(&m.requestCount)
}

// Errors returns the transport-error count.
func (m *MonitoringService) Errors() int64 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt64(&m.errorCount)
}

// Close shuts the NATS connection.
func (m *MonitoringService) Close() {
	if m == nil || m.nats == nil {
		return
	}
	m.nats.Close()
}
