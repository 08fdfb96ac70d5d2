package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"pet-aging-server/modules/common/fallback"
)

// ScanResult - scan_results table row. Created by the classification flow;
// this service only reads breed/image_path and owns simulation_data.
type ScanResult struct {
	ID             int64           `json:"id"`
	ScanID         string          `json:"scan_id"`
	ImagePath      string          `json:"image_path"`
	Breed          string          `json:"breed"`
	Confidence     float64         `json:"confidence"`
	SimulationData json.RawMessage `json:"simulation_data"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Simulation statuses. StatusNone is the absent state (no run ever started).
const (
	StatusNone       = ""
	StatusQueued     = "queued"
	StatusGenerating = "generating"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// The two supported aging horizons, in years.
const (
	HorizonNear = 1
	HorizonFar  = 3
)

// SimulationState is the typed form of the simulation_data blob. The JSON
// shape is an external contract shared with earlier implementations.
type SimulationState struct {
	Status       string             `json:"status"`
	Horizon1Path *string            `json:"horizon_1_path"`
	Horizon3Path *string            `json:"horizon_3_path"`
	BreedProfile *BreedAgingProfile `json:"breed_profile,omitempty"`
	Horizon1Err  string             `json:"horizon_1_error,omitempty"`
	Horizon3Err  string             `json:"horizon_3_error,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// IsTerminal reports whether no further run activity is expected.
func (s *SimulationState) IsTerminal() bool {
	return s.Status == StatusComplete || s.Status == StatusFailed
}

// HorizonPath returns the artifact path for a horizon, nil when unset.
func (s *SimulationState) HorizonPath(horizonYears int) *string {
	if horizonYears == HorizonFar {
		return s.Horizon3Path
	}
	return s.Horizon1Path
}

// SetHorizonPath records a finished artifact for a horizon.
func (s *SimulationState) SetHorizonPath(horizonYears int, path string) {
	if horizonYears == HorizonFar {
		s.Horizon3Path = &path
		s.Horizon3Err = ""
		return
	}
	s.Horizon1Path = &path
	s.Horizon1Err = ""
}

// SetHorizonError records a per-horizon failure message.
func (s *SimulationState) SetHorizonError(horizonYears int, msg string) {
	if horizonYears == HorizonFar {
		s.Horizon3Err = msg
		return
	}
	s.Horizon1Err = msg
}

// DecodeSimulationState parses a simulation_data blob. Blobs written by
// earlier implementations may carry loosely typed fields, so decoding never
// fails: anything unreadable degrades to the absent state.
func DecodeSimulationState(raw json.RawMessage) *SimulationState {
	state := &SimulationState{}
	if len(raw) == 0 || string(raw) == "null" {
		return state
	}

	if err := json.Unmarshal(raw, state); err == nil {
		return state
	}

	// Loosely typed legacy blob - coerce field by field.
	var loose map[string]interface{}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return &SimulationState{}
	}
	state = &SimulationState{
		Status:      fallback.SafeString(loose["status"], StatusNone),
		Horizon1Err: fallback.SafeString(loose["horizon_1_error"], ""),
		Horizon3Err: fallback.SafeString(loose["horizon_3_error"], ""),
		Error:       fallback.SafeString(loose["error"], ""),
	}
	if p := fallback.SafeString(loose["horizon_1_path"], ""); p != "" {
		state.Horizon1Path = &p
	}
	if p := fallback.SafeString(loose["horizon_3_path"], ""); p != "" {
		state.Horizon3Path = &p
	}
	return state
}

// Encode serializes the state back into the persisted blob shape.
func (s *SimulationState) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulation state: %w", err)
	}
	return data, nil
}

// BreedAgingProfile describes how a breed typically ages. Pure function of
// the breed name; optionally snapshotted into SimulationState.
type BreedAgingProfile struct {
	SizeCategory   string   `json:"size_category"`
	CoatType       string   `json:"coat_type"`
	GrayingPattern string   `json:"graying_pattern"`
	FaceChanges    string   `json:"face_changes"`
	BodyChanges    string   `json:"body_changes"`
	AgingSpeed     string   `json:"aging_speed"`
	SpecificTraits []string `json:"specific_traits"`
}

// PreparedImage is the resized, re-encoded form of a source photo, ready
// for transmission to the generation API. Cache value shape.
type PreparedImage struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

// Bytes decodes the payload back to raw image bytes.
func (p *PreparedImage) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Base64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode prepared image: %w", err)
	}
	return data, nil
}
