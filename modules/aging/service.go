package aging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pet-aging-server/modules/common/model"
)

// ScanStore is the scan_results collaborator: read breed/image_path, own
// the simulation_data blob. Record creation/deletion belongs elsewhere.
type ScanStore interface {
	FetchScanResult(ctx context.Context, scanID string) (*model.ScanResult, error)
	UpdateSimulationData(ctx context.Context, scanID string, state *model.SimulationState) error
}

// ArtifactStore persists generated horizon images.
type ArtifactStore interface {
	UploadArtifact(ctx context.Context, scanID string, horizonYears int, imageData []byte) (string, error)
}

// Generator issues one outbound request to the external image-generation
// API. No retry logic of its own - attempt budgets live here.
type Generator interface {
	Generate(ctx context.Context, prompt string, img *model.PreparedImage) ([]byte, error)
}

// RunQueue hands a scan to the background worker.
type RunQueue interface {
	Enqueue(ctx context.Context, scanID string) (int64, error)
}

// RunGate is the per-scan mutual-exclusion gate backing the
// "start if not started" check-and-set.
type RunGate interface {
	TryAcquire(ctx context.Context, scanID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scanID string) error
}

// Tunables are the retry/backoff knobs. Configuration, not contract.
type Tunables struct {
	MaxRetries int           // extra attempts per horizon after the first
	RetryDelay time.Duration // base delay; attempt n waits n × RetryDelay
	RunTimeout time.Duration // whole-run wall-clock budget
}

// Service is the simulation orchestrator.
type Service struct {
	store     ScanStore
	artifacts ArtifactStore
	preparer  *Preparer
	generator Generator
	queue     RunQueue
	gate      RunGate
	tun       Tunables
}

// NewService wires the orchestrator.
func NewService(store ScanStore, artifacts ArtifactStore, preparer *Preparer, generator Generator, queue RunQueue, gate RunGate, tun Tunables) *Service {
	return &Service{
		store:     store,
		artifacts: artifacts,
		preparer:  preparer,
		generator: generator,
		queue:     queue,
		gate:      gate,
		tun:       tun,
	}
}

// FetchScan exposes the store read to the HTTP layer.
func (s *Service) FetchScan(ctx context.Context, scanID string) (*model.ScanResult, error) {
	return s.store.FetchScanResult(ctx, scanID)
}

func (s *Service) gateTTL() time.Duration {
	return s.tun.RunTimeout + time.Minute
}

// EnsureStarted queues a run if and only if no run has ever started for the
// scan. Safe to call repeatedly and concurrently: the gate makes the
// check-and-set atomic, and once the queued write lands the status check
// itself suppresses duplicates.
func (s *Service) EnsureStarted(ctx context.Context, scan *model.ScanResult) (*model.SimulationState, int64, bool, error) {
	state := model.DecodeSimulationState(scan.SimulationData)
	if state.Status != model.StatusNone {
		return state, 0, false, nil
	}

	ok, err := s.gate.TryAcquire(ctx, scan.ScanID, s.gateTTL())
	if err != nil {
		return state, 0, false, err
	}
	if !ok {
		// A concurrent caller won the gate and is queueing right now.
		state.Status = model.StatusQueued
		return state, 0, false, nil
	}

	state.Status = model.StatusQueued
	if err := s.persistState(ctx, scan.ScanID, state); err != nil {
		s.gate.Release(ctx, scan.ScanID)
		return nil, 0, false, err
	}

	position, err := s.queue.Enqueue(ctx, scan.ScanID)
	if err != nil {
		// Roll the record back to absent so a later request can re-trigger.
		log.Printf("❌ Failed to enqueue scan %s, rolling back: %v", scan.ScanID, err)
		s.persistState(ctx, scan.ScanID, &model.SimulationState{})
		s.gate.Release(ctx, scan.ScanID)
		return nil, 0, false, err
	}

	log.Printf("🎯 Simulation queued for scan: %s (position: %d)", scan.ScanID, position)
	return state, position, true, nil
}

// Regenerate resets a terminal scan back to queued, clearing prior
// artifacts before any new run starts. The only legal revert of complete.
func (s *Service) Regenerate(ctx context.Context, scan *model.ScanResult) (*model.SimulationState, int64, error) {
	state := model.DecodeSimulationState(scan.SimulationData)
	if !state.IsTerminal() {
		return nil, 0, ErrRegenerateNotAllowed
	}

	ok, err := s.gate.TryAcquire(ctx, scan.ScanID, s.gateTTL())
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrRunInFlight
	}

	fresh := &model.SimulationState{Status: model.StatusQueued}
	if err := s.persistState(ctx, scan.ScanID, fresh); err != nil {
		s.gate.Release(ctx, scan.ScanID)
		return nil, 0, err
	}

	position, err := s.queue.Enqueue(ctx, scan.ScanID)
	if err != nil {
		log.Printf("❌ Failed to enqueue regenerate for scan %s, rolling back: %v", scan.ScanID, err)
		s.persistState(ctx, scan.ScanID, state)
		s.gate.Release(ctx, scan.ScanID)
		return nil, 0, err
	}

	log.Printf("🔄 Regenerate queued for scan: %s (artifacts cleared, position: %d)", scan.ScanID, position)
	return fresh, position, nil
}

type horizonFailure struct {
	horizon int
	err     error
}

// ProcessScan executes one simulation run end to end. Exactly one run per
// scan may be in flight; the worker is the only caller.
func (s *Service) ProcessScan(ctx context.Context, scanID string) {
	log.Printf("🚀 Processing simulation run: %s", scanID)

	runCtx, cancel := context.WithTimeout(ctx, s.tun.RunTimeout)
	defer cancel()
	defer s.releaseGate(scanID)

	scan, err := s.store.FetchScanResult(runCtx, scanID)
	if err != nil {
		log.Printf("❌ Failed to fetch scan %s: %v", scanID, err)
		return
	}

	state := model.DecodeSimulationState(scan.SimulationData)
	if state.Status == model.StatusGenerating || state.Status == model.StatusComplete {
		log.Printf("⚠️  Run suppressed for scan %s: status is already %s", scanID, state.Status)
		return
	}

	run := &simulationRun{svc: s, scanID: scanID, state: state}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Unexpected error in run for scan %s: %v", scanID, r)
			run.update(context.Background(), func(st *model.SimulationState) {
				st.Status = model.StatusFailed
				st.Error = fmt.Sprintf("unexpected error: %v", r)
			})
		}
	}()

	// Mark generating before any external work: a crash mid-run is then
	// observable as stuck-generating instead of silently queued forever.
	profile := DeriveProfile(scan.Breed)
	if err := run.update(runCtx, func(st *model.SimulationState) {
		st.Status = model.StatusGenerating
		st.BreedProfile = &profile
	}); err != nil {
		log.Printf("❌ Could not mark scan %s generating, aborting run: %v", scanID, err)
		return
	}

	prepared, err := s.preparer.Prepare(runCtx, scan.ImagePath)
	if err != nil {
		log.Printf("❌ Image preparation failed for scan %s: %v", scanID, err)
		run.update(context.Background(), func(st *model.SimulationState) {
			st.Status = model.StatusFailed
			st.Error = err.Error()
		})
		return
	}

	horizons := []int{model.HorizonNear, model.HorizonFar}
	prompts := map[int]string{}
	for _, h := range horizons {
		prompts[h] = BuildPrompt(scan.Breed, profile, h)
	}

	// Fire both horizons and settle: collect both outcomes, never stop at
	// the first one.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []horizonFailure

	log.Printf("🎨 Launching both horizon generations for scan %s", scanID)
	for _, h := range horizons {
		wg.Add(1)
		go func(horizon int) {
			defer wg.Done()
			if err := run.generateHorizonSafe(runCtx, horizon, prompts[horizon], prepared); err != nil {
				log.Printf("❌ Horizon %dy failed for scan %s: %v", horizon, scanID, err)
				mu.Lock()
				failures = append(failures, horizonFailure{horizon: horizon, err: err})
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	// Targeted retries: only failed horizons, sequentially, with a delay
	// growing attempt over attempt. Successful results are never re-run.
	for _, failure := range failures {
		lastErr := failure.err
		recovered := false

		for attempt := 1; attempt <= s.tun.MaxRetries; attempt++ {
			delay := s.tun.RetryDelay * time.Duration(attempt)
			log.Printf("🔄 Retrying horizon %dy for scan %s in %s (attempt %d/%d)",
				failure.horizon, scanID, delay, attempt, s.tun.MaxRetries)

			select {
			case <-runCtx.Done():
			case <-time.After(delay):
			}
			if runCtx.Err() != nil {
				lastErr = runCtx.Err()
				break
			}

			if err := run.generateHorizonSafe(runCtx, failure.horizon, prompts[failure.horizon], prepared); err != nil {
				lastErr = err
				continue
			}
			recovered = true
			break
		}

		if !recovered {
			log.Printf("❌ Horizon %dy exhausted retries for scan %s: %v", failure.horizon, scanID, lastErr)
			run.update(context.Background(), func(st *model.SimulationState) {
				st.SetHorizonError(failure.horizon, lastErr.Error())
			})
		}
	}

	// Exceeding the whole-run budget is the one whole-run failure besides
	// preparation: the record must never be left generating forever.
	if runCtx.Err() != nil {
		log.Printf("❌ Run for scan %s exceeded its time budget", scanID)
		run.update(context.Background(), func(st *model.SimulationState) {
			st.Status = model.StatusFailed
			st.Error = "simulation run exceeded its time budget"
		})
		return
	}

	// Complete even when a horizon failed: pollers must stop
	// deterministically, and one good artifact is not a total failure.
	if err := run.update(context.Background(), func(st *model.SimulationState) {
		st.Status = model.StatusComplete
	}); err != nil {
		log.Printf("❌ Failed to persist final status for scan %s: %v", scanID, err)
		return
	}

	log.Printf("🏁 Simulation run finished for scan %s (h1: %v, h3: %v)",
		scanID, run.state.Horizon1Path != nil, run.state.Horizon3Path != nil)
}

func (s *Service) releaseGate(scanID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.gate.Release(ctx, scanID); err != nil {
		log.Printf("⚠️  Failed to release run gate for scan %s: %v", scanID, err)
	}
}

// persistState writes the blob with short retries. A silently lost write
// would strand the record, so the last error is surfaced to the caller.
func (s *Service) persistState(ctx context.Context, scanID string, state *model.SimulationState) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := s.store.UpdateSimulationData(ctx, scanID, state); err != nil {
			lastErr = err
			log.Printf("⚠️  Persist attempt %d/3 failed for scan %s: %v", attempt, scanID, err)
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to persist simulation state: %w", lastErr)
}

// simulationRun owns the SimulationState blob for the duration of one run.
// All writes funnel through update, so they are serialized: a later
// failed-horizon write can never clobber an earlier successful one.
type simulationRun struct {
	svc    *Service
	scanID string
	state  *model.SimulationState
	mu     sync.Mutex
}

func (r *simulationRun) update(ctx context.Context, mutate func(*model.SimulationState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(r.state)
	return r.svc.persistState(ctx, r.scanID, r.state)
}

// generateHorizonSafe contains a panic inside one horizon attempt to that
// horizon: the other horizon and the run-level bookkeeping keep going.
func (r *simulationRun) generateHorizonSafe(ctx context.Context, horizonYears int, prompt string, prepared *model.PreparedImage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unexpected error: %v", rec)
		}
	}()
	return r.generateHorizon(ctx, horizonYears, prompt, prepared)
}

// generateHorizon runs a single generation attempt and, on success,
// persists the artifact path immediately so partial completion is visible
// to pollers before the whole run finishes.
func (r *simulationRun) generateHorizon(ctx context.Context, horizonYears int, prompt string, prepared *model.PreparedImage) error {
	log.Printf("🎨 Generating +%dy image for scan %s (prompt: %d chars)", horizonYears, r.scanID, len(prompt))

	imageData, err := r.svc.generator.Generate(ctx, prompt, prepared)
	if err != nil {
		return err
	}

	path, err := r.svc.artifacts.UploadArtifact(ctx, r.scanID, horizonYears, imageData)
	if err != nil {
		return fmt.Errorf("failed to store +%dy artifact: %w", horizonYears, err)
	}

	if err := r.update(ctx, func(st *model.SimulationState) {
		st.SetHorizonPath(horizonYears, path)
	}); err != nil {
		return err
	}

	log.Printf("✅ Horizon +%dy completed for scan %s: %s", horizonYears, r.scanID, path)
	return nil
}
