package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aigoflow/relay-service/internal/backend"
	"github.com/aigoflow/relay-service/internal/config"
	"github.com/aigoflow/relay-service/internal/services"
	"github.com/aigoflow/relay-service/internal/telemetry"
)

func newTestMux(t *testing.T, backendURL string) (*http.ServeMux, *telemetry.Writer) {
	t.Helper()
	cfg := &config.Config{
		BackendURL:     backendURL,
		ModelName:      "llama3",
		LogPath:        filepath.Join(t.TempDir(), "telemetry.csv"),
		QueueSize:      16,
		SampleInterval: 100 * time.Millisecond,
		StatsInterval:  time.Second,
	}

	writer := telemetry.NewWriter(cfg.LogPath, cfg.QueueSize)
	writer.Start()

	monitoring, err := services.NewMonitoringService(cfg, writer)
	if err != nil {
		t.Fatalf("Failed to create monitoring service: %v", err)
	}

	relay := services.NewRelayService(cfg, backend.New(cfg.BackendURL, cfg.ModelName), writer, monitoring, 0)

	mux := http.NewServeMux()
	NewGenerateHandler(relay).RegisterRoutes(mux)
	return mux, writer
}

func TestGenerateEndpointPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"response":      "hi",
			"eval_count":    100,
			"eval_duration": 1000000000,
		})
	}))
	defer srv.Close()

	mux, writer := newTestMux(t, srv.URL)
	defer writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"hello"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["response"] != "hi" {
		t.Errorf("Expected pass-through response hi, got %v", body["response"])
	}
	if body["eval_count"].(float64) != 100 {
		t.Errorf("Expected eval_count 100, got %v", body["eval_count"])
	}
}

func TestGenerateEndpointTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	mux, writer := newTestMux(t, srv.URL)
	defer writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"hello"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Transport failure uses the default status, got %d", rr.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse error payload: %v", err)
	}
	msg, ok := body["error"].(string)
	if !ok || msg == "" {
		t.Errorf("Expected non-empty error string, got %v", body)
	}
}

func TestGenerateEndpointRejectsGet(t *testing.T) {
	mux, writer := newTestMux(t, "http://localhost:0")
	defer writer.Close()

	req := httptest.NewRequest(http.MethodGet, "/generate", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rr.Code)
	}
}

func TestGenerateEndpointRejectsInvalidJSON(t *testing.T) {
	mux, writer := newTestMux(t, "http://localhost:0")
	defer writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux, writer := newTestMux(t, "http://localhost:0")
	defer writer.Close()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected ok body, got %q", rr.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"response": "hi"})
	}))
	defer srv.Close()

	mux, writer := newTestMux(t, srv.URL)
	defer writer.Close()

	post := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"hello"}`))
	mux.ServeHTTP(httptest.NewRecorder(), post)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var stats map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to parse stats: %v", err)
	}
	if stats["requests"].(float64) != 1 {
		t.Errorf("Expected 1 request served, got %v", stats["requests"])
	}
	if stats["model_name"] != "llama3" {
		t.Errorf("Expected model llama3, got %v", stats["model_name"])
	}
}
