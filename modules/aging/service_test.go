package aging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-aging-server/modules/common/database"
	"pet-aging-server/modules/common/model"
)

type stubScanStore struct {
	mu     sync.Mutex
	scan   *model.ScanResult
	states []*model.SimulationState
}

func (s *stubScanStore) FetchScanResult(ctx context.Context, scanID string) (*model.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scan == nil || s.scan.ScanID != scanID {
		return nil, fmt.Errorf("scan not found: %s: %w", scanID, database.ErrScanNotFound)
	}
	copied := *s.scan
	return &copied, nil
}

func (s *stubScanStore) UpdateSimulationData(ctx context.Context, scanID string, state *model.SimulationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := state.Encode()
	if err != nil {
		return err
	}
	s.scan.SimulationData = blob
	s.states = append(s.states, model.DecodeSimulationState(blob))
	return nil
}

func (s *stubScanStore) latest() *model.SimulationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return &model.SimulationState{}
	}
	return s.states[len(s.states)-1]
}

type stubArtifacts struct {
	mu      sync.Mutex
	uploads []int
}

func (a *stubArtifacts) UploadArtifact(ctx context.Context, scanID string, horizonYears int, imageData []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploads = append(a.uploads, horizonYears)
	return fmt.Sprintf("simulations/%s_%dy_test.webp", scanID, horizonYears), nil
}

type stubGenerator struct {
	mu       sync.Mutex
	calls    int
	generate func(call int, prompt string) ([]byte, error)
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, img *model.PreparedImage) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	return g.generate(call, prompt)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *stubQueue) Enqueue(ctx context.Context, scanID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	q.ids = append(q.ids, scanID)
	return int64(len(q.ids)), nil
}

func (q *stubQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type stubGate struct {
	mu   sync.Mutex
	held map[string]bool
}

func newStubGate() *stubGate {
	return &stubGate{held: map[string]bool{}}
}

func (g *stubGate) TryAcquire(ctx context.Context, scanID string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[scanID] {
		return false, nil
	}
	g.held[scanID] = true
	return true, nil
}

func (g *stubGate) Release(ctx context.Context, scanID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, scanID)
	return nil
}

func (g *stubGate) isHeld(scanID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[scanID]
}

type testRig struct {
	store     *stubScanStore
	artifacts *stubArtifacts
	generator *stubGenerator
	queue     *stubQueue
	gate      *stubGate
	source    *stubSource
	service   *Service
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		store: &stubScanStore{
			scan: &model.ScanResult{
				ID:        1,
				ScanID:    "scan-001",
				ImagePath: "scans/scan-001.png",
				Breed:     "Golden Retriever",
			},
		},
		artifacts: &stubArtifacts{},
		generator: &stubGenerator{
			generate: func(call int, prompt string) ([]byte, error) {
				return []byte("png-bytes"), nil
			},
		},
		queue:  &stubQueue{},
		gate:   newStubGate(),
		source: &stubSource{data: encodePNG(t, 50, 50)},
	}

	preparer := NewPreparer(rig.source, newMemCache(), 512, 80, time.Minute)
	rig.service = NewService(rig.store, rig.artifacts, preparer, rig.generator, rig.queue, rig.gate, Tunables{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		RunTimeout: 5 * time.Second,
	})
	return rig
}

func isFarPrompt(prompt string) bool {
	return strings.Contains(prompt, "3 years older")
}

func TestEnsureStartedQueuesExactlyOnce(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	scan, err := rig.store.FetchScanResult(ctx, "scan-001")
	require.NoError(t, err)

	state, position, started, err := rig.service.EnsureStarted(ctx, scan)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, model.StatusQueued, state.Status)
	assert.Equal(t, int64(1), position)

	// The queued write is now persisted; a second read sees it and does
	// not enqueue again.
	scan, err = rig.store.FetchScanResult(ctx, "scan-001")
	require.NoError(t, err)

	state, _, started, err = rig.service.EnsureStarted(ctx, scan)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, model.StatusQueued, state.Status)

	assert.Equal(t, []string{"scan-001"}, rig.queue.ids)
}

func TestEnsureStartedGateSuppressesConcurrentDuplicate(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// Simulate a concurrent caller mid-trigger: gate held, queued write
	// not yet visible.
	ok, err := rig.gate.TryAcquire(ctx, "scan-001", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	scan, err := rig.store.FetchScanResult(ctx, "scan-001")
	require.NoError(t, err)

	state, _, started, err := rig.service.EnsureStarted(ctx, scan)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, model.StatusQueued, state.Status)
	assert.Empty(t, rig.queue.ids)
}

func TestEnsureStartedRollsBackOnEnqueueFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.queue.err = errors.New("redis down")
	ctx := context.Background()

	scan, err := rig.store.FetchScanResult(ctx, "scan-001")
	require.NoError(t, err)

	_, _, _, err = rig.service.EnsureStarted(ctx, scan)
	require.Error(t, err)

	// Rolled back to absent and the gate freed, so a later request can
	// trigger again.
	assert.Equal(t, model.StatusNone, rig.store.latest().Status)
	assert.False(t, rig.gate.isHeld("scan-001"))
}

func TestProcessScanCompletesBothHorizons(t *testing.T) {
	rig := newTestRig(t)

	rig.service.ProcessScan(context.Background(), "scan-001")

	final := rig.store.latest()
	assert.Equal(t, model.StatusComplete, final.Status)
	require.NotNil(t, final.Horizon1Path)
	require.NotNil(t, final.Horizon3Path)
	assert.Equal(t, "simulations/scan-001_1y_test.webp", *final.Horizon1Path)
	assert.Equal(t, "simulations/scan-001_3y_test.webp", *final.Horizon3Path)
	assert.Empty(t, final.Horizon1Err)
	assert.Empty(t, final.Horizon3Err)
	assert.Equal(t, 2, rig.generator.callCount())
	assert.False(t, rig.gate.isHeld("scan-001"))
}

func TestProcessScanPersistsGeneratingFirst(t *testing.T) {
	rig := newTestRig(t)

	rig.service.ProcessScan(context.Background(), "scan-001")

	rig.store.mu.Lock()
	first := rig.store.states[0]
	rig.store.mu.Unlock()

	assert.Equal(t, model.StatusGenerating, first.Status)
	require.NotNil(t, first.BreedProfile)
	assert.Equal(t, GrayingEarly, first.BreedProfile.GrayingPattern)
}

func TestProcessScanRetriesRecoverAHorizon(t *testing.T) {
	rig := newTestRig(t)
	rig.generator.generate = func(call int, prompt string) ([]byte, error) {
		if isFarPrompt(prompt) && call <= 2 {
			// First far-horizon attempt fails; the retry succeeds.
			return nil, &GenerationError{Reason: ReasonTransport, Message: "connection reset"}
		}
		return []byte("png-bytes"), nil
	}

	rig.service.ProcessScan(context.Background(), "scan-001")

	final := rig.store.latest()
	assert.Equal(t, model.StatusComplete, final.Status)
	require.NotNil(t, final.Horizon1Path)
	require.NotNil(t, final.Horizon3Path)
	assert.Empty(t, final.Horizon3Err)
}

func TestProcessScanPartialFailureStillCompletes(t *testing.T) {
	rig := newTestRig(t)
	rig.generator.generate = func(call int, prompt string) ([]byte, error) {
		if isFarPrompt(prompt) {
			return nil, &GenerationError{Reason: ReasonRateLimited, Message: "quota exhausted"}
		}
		return []byte("png-bytes"), nil
	}

	rig.service.ProcessScan(context.Background(), "scan-001")

	final := rig.store.latest()
	assert.Equal(t, model.StatusComplete, final.Status)
	require.NotNil(t, final.Horizon1Path)
	assert.Nil(t, final.Horizon3Path)
	assert.NotEmpty(t, final.Horizon3Err)
	assert.Empty(t, final.Error)
	// One near attempt plus the initial far attempt and both retries.
	assert.Equal(t, 4, rig.generator.callCount())
}

func TestProcessScanSuccessSurvivesLaterFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.generator.generate = func(call int, prompt string) ([]byte, error) {
		if isFarPrompt(prompt) {
			return nil, &GenerationError{Reason: ReasonEmptyResponse, Message: "no image data in response"}
		}
		return []byte("png-bytes"), nil
	}

	rig.service.ProcessScan(context.Background(), "scan-001")

	// Every persisted snapshot taken after the near artifact landed must
	// still carry its path.
	rig.store.mu.Lock()
	defer rig.store.mu.Unlock()
	seen := false
	for _, st := range rig.store.states {
		if st.Horizon1Path != nil {
			seen = true
		} else if seen {
			t.Fatalf("near-horizon artifact path lost in a later persist")
		}
	}
	assert.True(t, seen)
}

func TestProcessScanPreparationFailureFailsRun(t *testing.T) {
	rig := newTestRig(t)
	rig.source.err = errors.New("bucket unavailable")

	rig.service.ProcessScan(context.Background(), "scan-001")

	final := rig.store.latest()
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Nil(t, final.Horizon1Path)
	assert.Nil(t, final.Horizon3Path)
	assert.Equal(t, 0, rig.generator.callCount())
	assert.False(t, rig.gate.isHeld("scan-001"))
}

func TestProcessScanSuppressedWhenAlreadyComplete(t *testing.T) {
	rig := newTestRig(t)
	done := &model.SimulationState{Status: model.StatusComplete}
	blob, err := done.Encode()
	require.NoError(t, err)
	rig.store.scan.SimulationData = blob

	rig.service.ProcessScan(context.Background(), "scan-001")

	assert.Equal(t, 0, rig.generator.callCount())
	assert.Empty(t, rig.store.states)
}

func TestProcessScanContainsGeneratorPanic(t *testing.T) {
	rig := newTestRig(t)
	rig.generator.generate = func(call int, prompt string) ([]byte, error) {
		panic("generator blew up")
	}

	rig.service.ProcessScan(context.Background(), "scan-001")

	// A panicking attempt counts as a horizon failure, never a crash.
	final := rig.store.latest()
	assert.Equal(t, model.StatusComplete, final.Status)
	assert.Nil(t, final.Horizon1Path)
	assert.Nil(t, final.Horizon3Path)
	assert.Contains(t, final.Horizon1Err, "unexpected error")
	assert.Contains(t, final.Horizon3Err, "unexpected error")
	assert.False(t, rig.gate.isHeld("scan-001"))
}

func TestRegenerateRequiresTerminalState(t *testing.T) {
	rig := newTestRig(t)
	queued := &model.SimulationState{Status: model.StatusQueued}
	blob, err := queued.Encode()
	require.NoError(t, err)
	rig.store.scan.SimulationData = blob

	scan, err := rig.store.FetchScanResult(context.Background(), "scan-001")
	require.NoError(t, err)

	_, _, err = rig.service.Regenerate(context.Background(), scan)
	assert.ErrorIs(t, err, ErrRegenerateNotAllowed)
	assert.Empty(t, rig.queue.ids)
}

func TestRegenerateClearsArtifactsAndRequeues(t *testing.T) {
	rig := newTestRig(t)
	path1 := "simulations/scan-001_1y_old.webp"
	path3 := "simulations/scan-001_3y_old.webp"
	done := &model.SimulationState{
		Status:       model.StatusComplete,
		Horizon1Path: &path1,
		Horizon3Path: &path3,
	}
	blob, err := done.Encode()
	require.NoError(t, err)
	rig.store.scan.SimulationData = blob

	scan, err := rig.store.FetchScanResult(context.Background(), "scan-001")
	require.NoError(t, err)

	state, position, err := rig.service.Regenerate(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, state.Status)
	assert.Equal(t, int64(1), position)
	assert.Nil(t, state.Horizon1Path)
	assert.Nil(t, state.Horizon3Path)
	assert.Equal(t, []string{"scan-001"}, rig.queue.ids)
}
