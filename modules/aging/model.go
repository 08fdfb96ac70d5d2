package aging

import "pet-aging-server/modules/common/model"

// GenerateRequest - POST /simulations/generate body.
type GenerateRequest struct {
	ScanID     string `json:"scan_id"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

// GenerateResponse acknowledges a trigger.
type GenerateResponse struct {
	Success       bool   `json:"success"`
	ScanID        string `json:"scan_id"`
	Status        string `json:"status"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
	Message       string `json:"message,omitempty"`
}

// HorizonArtifacts carries the per-horizon artifact paths. Members stay
// null until the corresponding generation lands.
type HorizonArtifacts struct {
	Horizon1 *string `json:"horizon_1"`
	Horizon3 *string `json:"horizon_3"`
}

// HorizonErrors carries per-horizon failure messages for partially
// complete runs.
type HorizonErrors struct {
	Horizon1 string `json:"horizon_1,omitempty"`
	Horizon3 string `json:"horizon_3,omitempty"`
}

// StatusResponse - the status/watch payload clients poll for. The
// simulations object is always present so clients can bind to its shape
// before any artifact exists.
type StatusResponse struct {
	ScanID        string            `json:"scan_id"`
	Status        string            `json:"status"`
	OriginalImage string            `json:"original_image,omitempty"`
	Simulations   *HorizonArtifacts `json:"simulations"`
	Errors        *HorizonErrors    `json:"errors,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// NewStatusResponse maps a scan record and its simulation state to the
// client payload. The absent state is reported as "absent" so clients
// never see an empty status string.
func NewStatusResponse(scan *model.ScanResult, state *model.SimulationState) *StatusResponse {
	resp := &StatusResponse{
		ScanID:        scan.ScanID,
		Status:        state.Status,
		OriginalImage: scan.ImagePath,
		Error:         state.Error,
		Simulations: &HorizonArtifacts{
			Horizon1: state.Horizon1Path,
			Horizon3: state.Horizon3Path,
		},
	}
	if resp.Status == model.StatusNone {
		resp.Status = "absent"
	}

	if state.Horizon1Err != "" || state.Horizon3Err != "" {
		resp.Errors = &HorizonErrors{
			Horizon1: state.Horizon1Err,
			Horizon3: state.Horizon3Err,
		}
	}
	return resp
}
