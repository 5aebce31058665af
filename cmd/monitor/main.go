package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/relay-service/internal/models"
	"github.com/aigoflow/relay-service/internal/services"
)

// ModelStats aggregates telemetry seen for one model.
type ModelStats struct {
	ModelName       string
	Requests        int64
	Errors          int64
	RecordsWritten  int64
	RecordsDropped  int64
	LastTokensPerS  float64
	AvgTokensPerS   float64
	LastLatencyMs   float64
	tokensPerSecSum float64
	recordCount     int64
	LastSeen        time.Time
}

// TelemetryMonitor subscribes to the relay's telemetry subjects and
// keeps per-model rolling aggregates.
type TelemetryMonitor struct {
	nats   *nats.Conn
	mu     sync.RWMutex
	models map[string]*ModelStats
}

func NewTelemetryMonitor(natsURL string) (*TelemetryMonitor, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &TelemetryMonitor{
		nats:   nc,
		models: make(map[string]*ModelStats),
	}, nil
}

func (m *TelemetryMonitor) Start() error {
	if _, err := m.nats.Subscribe("telemetry.requests.*", m.handleRecord); err != nil {
		return fmt.Errorf("failed to subscribe to request telemetry: %w", err)
	}
	if _, err := m.nats.Subscribe("telemetry.stats.*", m.handleStats); err != nil {
		return fmt.Errorf("failed to subscribe to stats telemetry: %w", err)
	}
	log.Println("Telemetry monitor started, listening on telemetry.requests.* and telemetry.stats.*")
	return nil
}

func (m *TelemetryMonitor) handleRecord(msg *nats.Msg) {
	var rec models.TelemetryRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		log.Printf("Failed to parse telemetry record from %s: %v", msg.Subject, err)
		return
	}

	m.mu.Lock()
	stats := m.stats(rec.ModelName)
	stats.recordCount++
	stats.tokensPerSecSum += rec.TokensPerSecond
	stats.LastTokensPerS = rec.TokensPerSecond
	stats.AvgTokensPerS = stats.tokensPerSecSum / float64(stats.recordCount)
	stats.LastLatencyMs = rec.NetworkLatencyNs / 1e6
	stats.LastSeen = time.Now()
	m.mu.Unlock()
}

func (m *TelemetryMonitor) handleStats(msg *nats.Msg) {
	var report services.StatsReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		log.Printf("Failed to parse stats report from %s: %v", msg.Subject, err)
		return
	}

	m.mu.Lock()
	stats := m.stats(report.ModelName)
	stats.Requests = report.Requests
	stats.Errors = report.Errors
	stats.RecordsWritten = report.RecordsWritten
	stats.RecordsDropped = report.RecordsDropped
	stats.LastSeen = time.Now()
	m.mu.Unlock()
}

// stats returns the entry for a model, creating it if needed.
// Caller must hold m.mu.
func (m *TelemetryMonitor) stats(modelName string) *ModelStats {
	if s, ok := m.models[modelName]; ok {
		return s
	}
	s := &ModelStats{ModelName: modelName}
	m.models[modelName] = s
	return s
}

func (m *TelemetryMonitor) Snapshot() []ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ModelStats
	for _, s := range m.models {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModelName < out[j].ModelName
	})
	return out
}

func (m *TelemetryMonitor) Close() {
	if m.nats != nil {
		m.nats.Close()
	}
}

func main() {
	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		onceMode = flag.Bool("once", false, "Collect briefly, print one snapshot, and exit")
		refresh  = flag.Duration("refresh", 2*time.Second, "Live table refresh interval")
	)
	flag.Parse()

	monitor, err := NewTelemetryMonitor(*natsURL)
	if err != nil {
		log.Fatalf("Failed to create telemetry monitor: %v", err)
	}
	defer monitor.Close()

	if err := monitor.Start(); err != nil {
		log.Fatalf("Failed to start telemetry monitor: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *onceMode {
		time.Sleep(3 * time.Second)
		printTable(monitor.Snapshot())
		return
	}

	ticker := time.NewTicker(*refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Print("\033[2J\033[H")
			fmt.Printf("Relay Telemetry Monitor - %s\n\n", time.Now().Format("15:04:05"))
			printTable(monitor.Snapshot())
		}
	}
}

func printTable(stats []ModelStats) {
	if len(stats) == 0 {
		fmt.Println("No telemetry received yet")
		return
	}

	fmt.Printf("%-15s %-10s %-8s %-10s %-10s %-12s %-12s %-10s\n",
		"MODEL", "REQUESTS", "ERRORS", "WRITTEN", "DROPPED", "TOK/S(LAST)", "TOK/S(AVG)", "LAST_SEEN")
	fmt.Printf("%s\n", strings.Repeat("-", 95))

	for _, s := range stats {
		fmt.Printf("%-15s %-10d %-8d %-10d %-10d %-12.2f %-12.2f %-10s\n",
			s.ModelName, s.Requests, s.Errors, s.RecordsWritten, s.RecordsDropped,
			s.LastTokensPerS, s.AvgTokensPerS,
			formatAgo(s.LastSeen))
	}
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}
