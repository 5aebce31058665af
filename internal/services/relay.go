package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/aigoflow/relay-service/internal/backend"
	"github.com/aigoflow/relay-service/internal/config"
	"github.com/aigoflow/relay-service/internal/models"
	"github.com/aigoflow/relay-service/internal/sysmon"
	"github.com/aigoflow/relay-service/internal/telemetry"
)

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// RelayService forwards prompts to the inference backend and records a
// telemetry record per successful call. The model memory baseline is
// measured once at startup (see Prober) and immutable afterwards.
type RelayService struct {
	cfg         *config.Config
	backend     *backend.Client
	writer      *telemetry.Writer
	monitoring  *MonitoringService
	modelMemory uint64
}

func NewRelayService(cfg *config.Config, be *backend.Client, writer *telemetry.Writer, monitoring *MonitoringService, modelMemory uint64) *RelayService {
	return &RelayService{
		cfg:         cfg,
		backend:     be,
		writer:      writer,
		monitoring:  monitoring,
		modelMemory: modelMemory,
	}
}

// ProcessGenerate runs one relay round trip: sample CPU while the
// backend call is in flight, compute derived metrics, enqueue the
// telemetry record, and hand the backend body back unchanged.
//
// On transport failure the backend error is returned as-is and nothing
// is logged: no partial record is ever written.
func (s *RelayService) ProcessGenerate(ctx context.Context, req GenerateRequest, reqID string) (map[string]interface{}, error) {
	start := time.Now()
	memBefore := residentMemoryOrZero()

	sampler := sysmon.NewCPUSampler(s.cfg.SampleInterval)
	sampler.Start()

	body, latency, err := s.backend.Generate(ctx, req.Prompt)
	sampler.Stop()

	if err != nil {
		s.monitoring.IncrementErrors()
		slog.Error("Backend call failed",
			"req_id", reqID,
			"model", s.cfg.ModelName,
			"error", err)
		return nil, err
	}

	avgCPU := sampler.Result()
	memAfter := residentMemoryOrZero()

	evalCount := numField(body, "eval_count", 0)
	evalDuration := numField(body, "eval_duration", 1) // 1, not 0: divisor below
	loadDuration := numField(body, "load_duration", 0)
	promptEvalDuration := numField(body, "prompt_eval_duration", 0)
	totalDuration := numField(body, "total_duration", 0)

	tokensPerSecond := 0.0
	if evalDuration > 0 {
		tokensPerSecond = round2(float64(evalCount) / float64(evalDuration) * 1e9)
	}

	rec := &models.TelemetryRecord{
		Timestamp:          time.Now().Format("2006-01-02 15:04:05"),
		ModelName:          s.cfg.ModelName,
		Prompt:             req.Prompt,
		Response:           stringField(body, "response", "N/A"),
		EvalCount:          evalCount,
		EvalDuration:       evalDuration,
		LoadDuration:       loadDuration,
		PromptEvalDuration: promptEvalDuration,
		TotalDuration:      totalDuration,
		TokensPerSecond:    tokensPerSecond,
		AvgCPUUsage:        avgCPU,
		MemoryBefore:       memBefore,
		MemoryAfter:        memAfter,
		ModelMemory:        s.modelMemory,
		NetworkLatencyNs:   round2(float64(latency.Nanoseconds())),
		TotalResponseNs:    round2(float64(time.Since(start).Nanoseconds())),
	}

	s.writer.Enqueue(rec)
	s.monitoring.IncrementRequests()
	s.monitoring.PublishRecord(rec)

	slog.Info("Relay request completed",
		"req_id", reqID,
		"model", s.cfg.ModelName,
		"eval_count", evalCount,
		"tokens_per_second", tokensPerSecond,
		"latency_ms", latency.Milliseconds())

	return body, nil
}

// Stats reports in-process counters for the /stats endpoint.
func (s *RelayService) Stats() map[string]interface{} {
	return map[string]interface{}{
		"model_name":                 s.cfg.ModelName,
		"requests":                   s.monitoring.Requests(),
		"errors":                     s.monitoring.Errors(),
		"records_written":            s.writer.Written(),
		"records_dropped":            s.writer.Dropped(),
		"memory_allocated_for_model": s.modelMemory,
	}
}

func residentMemoryOrZero() uint64 {
	rss, err := sysmon.ResidentMemory()
	if err != nil {
		slog.Warn("Failed to read resident memory", "error", err)
		return 0
	}
	return rss
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// numField extracts a numeric field from the untyped backend body,
// falling back to defaultVal when the key is absent or non-numeric.
func numField(body map[string]interface{}, key string, defaultVal int64) int64 {
	v, ok := body[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return defaultVal
	}
}

func stringField(body map[string]interface{}, key, defaultVal string) string {
	if v, ok := body[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}
