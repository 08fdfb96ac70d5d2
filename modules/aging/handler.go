package aging

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"pet-aging-server/modules/common/database"
	"pet-aging-server/modules/common/model"
)

// Handler - simulation HTTP endpoints
type Handler struct {
	service *Service
}

// NewHandler - create simulation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - register simulation routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/simulations/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/simulations/status/{scanId}", h.HandleStatus).Methods("GET", "OPTIONS")
	log.Println("✅ Simulation routes registered: /simulations/generate, /simulations/status/{scanId}")
}

// HandleGenerate - POST /simulations/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Generate] Invalid request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.ScanID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			Message: "scan_id is required",
		})
		return
	}

	log.Printf("📥 [Generate] Received scan_id: %s (regenerate: %v)", req.ScanID, req.Regenerate)

	scan, err := h.service.FetchScan(r.Context(), req.ScanID)
	if err != nil {
		if errors.Is(err, database.ErrScanNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(GenerateResponse{
				Success: false,
				ScanID:  req.ScanID,
				Message: "Scan not found",
			})
			return
		}
		log.Printf("❌ [Generate] Failed to fetch scan %s: %v", req.ScanID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			ScanID:  req.ScanID,
			Message: "Failed to load scan",
		})
		return
	}

	if req.Regenerate {
		state, position, err := h.service.Regenerate(r.Context(), scan)
		if err != nil {
			if errors.Is(err, ErrRegenerateNotAllowed) || errors.Is(err, ErrRunInFlight) {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(GenerateResponse{
					Success: false,
					ScanID:  req.ScanID,
					Message: err.Error(),
				})
				return
			}
			log.Printf("❌ [Generate] Regenerate failed for scan %s: %v", req.ScanID, err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(GenerateResponse{
				Success: false,
				ScanID:  req.ScanID,
				Message: "Failed to queue regeneration",
			})
			return
		}

		json.NewEncoder(w).Encode(GenerateResponse{
			Success:       true,
			ScanID:        req.ScanID,
			Status:        state.Status,
			QueuePosition: position,
			Message:       "Regeneration queued",
		})
		return
	}

	state, position, started, err := h.service.EnsureStarted(r.Context(), scan)
	if err != nil {
		log.Printf("❌ [Generate] Failed to start simulation for scan %s: %v", req.ScanID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			ScanID:  req.ScanID,
			Message: "Failed to queue simulation",
		})
		return
	}

	message := "Simulation already started"
	if started {
		message = "Simulation queued"
	}
	json.NewEncoder(w).Encode(GenerateResponse{
		Success:       true,
		ScanID:        req.ScanID,
		Status:        state.Status,
		QueuePosition: position,
		Message:       message,
	})
}

// HandleStatus - GET /simulations/status/{scanId}
//
// Reading status also triggers generation for scans that never started,
// so clients only ever need the one endpoint.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	vars := mux.Vars(r)
	scanID := vars["scanId"]
	if scanID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(StatusResponse{Error: "scanId is required"})
		return
	}

	scan, err := h.service.FetchScan(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, database.ErrScanNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(StatusResponse{
				ScanID: scanID,
				Error:  "Scan not found",
			})
			return
		}
		log.Printf("❌ [Status] Failed to fetch scan %s: %v", scanID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(StatusResponse{
			ScanID: scanID,
			Error:  "Failed to load scan",
		})
		return
	}

	state, _, started, err := h.service.EnsureStarted(r.Context(), scan)
	if err != nil {
		// Trigger failures degrade to reporting the stored state - the
		// client can poll again.
		log.Printf("⚠️  [Status] Trigger failed for scan %s: %v", scanID, err)
		state = model.DecodeSimulationState(scan.SimulationData)
	}
	if started {
		log.Printf("🎯 [Status] First status read triggered simulation for scan %s", scanID)
	}

	json.NewEncoder(w).Encode(NewStatusResponse(scan, state))
}
