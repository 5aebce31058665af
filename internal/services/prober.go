package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/aigoflow/relay-service/internal/backend"
	"github.com/aigoflow/relay-service/internal/sysmon"
)

// Prober measures the resident-memory delta attributable to model
// loading. It runs once, before the service accepts traffic.
type Prober struct {
	backend *backend.Client
	settle  time.Duration
}

func NewProber(be *backend.Client, settle time.Duration) *Prober {
	return &Prober{backend: be, settle: settle}
}

// MeasureModelMemory issues the warm-up call and returns the positive
// RSS delta in bytes. A warm-up failure is logged but never aborts
// startup; the baseline simply stays at zero.
func (p *Prober) MeasureModelMemory(ctx context.Context) uint64 {
	before, err := sysmon.ResidentMemory()
	if err != nil {
		slog.Warn("Failed to read resident memory before warm-up", "error", err)
		return 0
	}

	if err := p.backend.Warmup(ctx); err != nil {
		slog.Warn("Warm-up request failed, model memory baseline defaults to zero", "error", err)
		return 0
	}

	// Give the backend time to finish mapping model weights.
	if p.settle > 0 {
		time.Sleep(p.settle)
	}

	after, err := sysmon.ResidentMemory()
	if err != nil {
		slog.Warn("Failed to read resident memory after warm-up", "error", err)
		return 0
	}

	if after <= before {
		return 0
	}
	delta := after - before
	slog.Info("Model memory baseline measured",
		"before_bytes", before,
		"after_bytes", after,
		"delta_bytes", delta)
	return delta
}
