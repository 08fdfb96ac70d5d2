package aging

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pet-aging-server/modules/common/database"
	"pet-aging-server/modules/common/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins - lock down per deployment domain later
		return true
	},
}

const (
	watchInterval = 2 * time.Second
	watchMaxAge   = 10 * time.Minute
)

// RegisterWatchRoutes - register the live status stream
func (h *Handler) RegisterWatchRoutes(r *mux.Router) {
	r.HandleFunc("/simulations/watch/{scanId}", h.HandleWatch).Methods("GET")
	log.Println("✅ Simulation watch route registered: /simulations/watch/{scanId}")
}

// HandleWatch - GET /simulations/watch/{scanId}
//
// Streams the status payload over a WebSocket until the run reaches a
// terminal state, sparing mobile clients from HTTP polling.
func (h *Handler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scanID := vars["scanId"]

	// Validate the scan before upgrading so a missing scan is a plain 404.
	scan, err := h.service.FetchScan(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, database.ErrScanNotFound) {
			http.Error(w, "Scan not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ [Watch] Failed to fetch scan %s: %v", scanID, err)
		http.Error(w, "Failed to load scan", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ [Watch] WebSocket upgrade failed for scan %s: %v", scanID, err)
		return
	}
	defer conn.Close()

	log.Printf("🔌 [Watch] Client connected for scan %s", scanID)

	// Connecting also triggers generation, same as the status endpoint.
	state, _, _, err := h.service.EnsureStarted(r.Context(), scan)
	if err != nil {
		log.Printf("⚠️  [Watch] Trigger failed for scan %s: %v", scanID, err)
		state = model.DecodeSimulationState(scan.SimulationData)
	}
	if err := conn.WriteJSON(NewStatusResponse(scan, state)); err != nil {
		return
	}
	if state.IsTerminal() {
		return
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	deadline := time.After(watchMaxAge)

	for {
		select {
		case <-deadline:
			log.Printf("⚠️  [Watch] Stream for scan %s exceeded max age, closing", scanID)
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			scan, err := h.service.FetchScan(r.Context(), scanID)
			if err != nil {
				log.Printf("⚠️  [Watch] Refresh failed for scan %s: %v", scanID, err)
				continue
			}
			state := model.DecodeSimulationState(scan.SimulationData)
			if err := conn.WriteJSON(NewStatusResponse(scan, state)); err != nil {
				log.Printf("🔌 [Watch] Client disconnected for scan %s", scanID)
				return
			}
			if state.IsTerminal() {
				log.Printf("🏁 [Watch] Scan %s reached %s, closing stream", scanID, state.Status)
				return
			}
		}
	}
}
