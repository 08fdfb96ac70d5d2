package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"pet-aging-server/modules/common/config"
	"pet-aging-server/modules/common/model"
)

// ErrScanNotFound is returned when a scan id has no scan_results row.
var ErrScanNotFound = fmt.Errorf("scan not found")

// Client reads scan rows and owns writes to their simulation_data blob.
type Client struct {
	supabase *supabase.Client
}

// NewClient creates the scan_results client.
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// FetchScanResult loads one scan row by its scan id.
func (c *Client) FetchScanResult(ctx context.Context, scanID string) (*model.ScanResult, error) {
	log.Printf("🔍 Fetching scan result: %s", scanID)

	var scans []model.ScanResult

	data, _, err := c.supabase.From("scan_results").
		Select("*", "exact", false).
		Eq("scan_id", scanID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query scan_results: %w", err)
	}

	if err := json.Unmarshal(data, &scans); err != nil {
		return nil, fmt.Errorf("failed to parse scan response: %w", err)
	}

	if len(scans) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}

	scan := &scans[0]
	log.Printf("✅ Scan fetched: %s (breed: %s, image: %s)", scan.ScanID, scan.Breed, scan.ImagePath)

	return scan, nil
}

// UpdateSimulationData replaces the simulation_data blob for a scan. Callers
// serialize writes per scan; this method does a full-blob replace so a stale
// concurrent write can never merge into a newer one.
func (c *Client) UpdateSimulationData(ctx context.Context, scanID string, state *model.SimulationState) error {
	log.Printf("📝 Updating scan %s simulation status to: %s", scanID, state.Status)

	blob, err := state.Encode()
	if err != nil {
		return err
	}

	updateData := map[string]interface{}{
		"simulation_data": json.RawMessage(blob),
		"updated_at":      "now()",
	}

	_, _, err = c.supabase.From("scan_results").
		Update(updateData, "", "").
		Eq("scan_id", scanID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update simulation_data: %w", err)
	}

	log.Printf("✅ Scan %s simulation_data updated (status: %s)", scanID, state.Status)
	return nil
}
