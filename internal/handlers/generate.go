package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/relay-service/internal/services"
)

type GenerateHandler struct {
	relayService *services.RelayService
}

func NewGenerateHandler(relayService *services.RelayService) *GenerateHandler {
	return &GenerateHandler{
		relayService: relayService,
	}
}

func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/generate", h.handleGenerate)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
}

func (h *GenerateHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *GenerateHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req services.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = ulid.Make().String()
	}

	w.Header().Set("Content-Type", "application/json")

	body, err := h.relayService.ProcessGenerate(r.Context(), req, reqID)
	if err != nil {
		// Transport failures surface as a JSON error payload, no
		// distinguished status code.
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(body)
}

func (h *GenerateHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.relayService.Stats())
}
