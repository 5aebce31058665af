package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8090" {
		t.Errorf("Expected default HTTP addr :8090, got %q", cfg.HTTPAddr)
	}
	if cfg.BackendURL != "http://localhost:11434" {
		t.Errorf("Expected default backend URL, got %q", cfg.BackendURL)
	}
	if cfg.SampleInterval != 100*time.Millisecond {
		t.Errorf("Expected default sample interval 100ms, got %v", cfg.SampleInterval)
	}
	if cfg.QueueSize != 256 {
		t.Errorf("Expected default queue size 256, got %d", cfg.QueueSize)
	}
	if cfg.NatsURL != "" {
		t.Errorf("Monitoring should be disabled by default, got NATS URL %q", cfg.NatsURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MODEL_NAME", "qwen3-4b")
	t.Setenv("TELEMETRY_QUEUE_SIZE", "32")
	t.Setenv("SAMPLE_INTERVAL", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTP addr :9999, got %q", cfg.HTTPAddr)
	}
	if cfg.ModelName != "qwen3-4b" {
		t.Errorf("Expected model qwen3-4b, got %q", cfg.ModelName)
	}
	if cfg.QueueSize != 32 {
		t.Errorf("Expected queue size 32, got %d", cfg.QueueSize)
	}
	if cfg.SampleInterval != 250*time.Millisecond {
		t.Errorf("Expected sample interval 250ms, got %v", cfg.SampleInterval)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TELEMETRY_QUEUE_SIZE", "not-a-number")
	t.Setenv("SAMPLE_INTERVAL", "garbage")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.QueueSize != 256 {
		t.Errorf("Invalid int should fall back to 256, got %d", cfg.QueueSize)
	}
	if cfg.SampleInterval != 100*time.Millisecond {
		t.Errorf("Invalid duration should fall back to 100ms, got %v", cfg.SampleInterval)
	}
}
