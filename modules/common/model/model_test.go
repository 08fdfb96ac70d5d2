package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSimulationStateEmpty(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage("")} {
		state := DecodeSimulationState(raw)
		assert.Equal(t, StatusNone, state.Status)
		assert.False(t, state.IsTerminal())
	}
}

func TestSimulationStateRoundTrip(t *testing.T) {
	path := "simulations/scan-001_3y_1700000000.webp"
	state := &SimulationState{
		Status:       StatusComplete,
		Horizon3Path: &path,
		Horizon1Err:  "generation failed (transport): connection reset",
	}

	blob, err := state.Encode()
	require.NoError(t, err)

	decoded := DecodeSimulationState(blob)
	assert.Equal(t, state, decoded)
}

func TestDecodeSimulationStateLooseLegacyBlob(t *testing.T) {
	// Earlier writers stored status as a number and omitted most fields.
	raw := json.RawMessage(`{"status": 2, "horizon_1_path": "simulations/old.webp", "error": ""}`)

	state := DecodeSimulationState(raw)
	assert.Equal(t, StatusNone, state.Status)
	require.NotNil(t, state.Horizon1Path)
	assert.Equal(t, "simulations/old.webp", *state.Horizon1Path)
	assert.Nil(t, state.Horizon3Path)
}

func TestDecodeSimulationStateGarbage(t *testing.T) {
	state := DecodeSimulationState(json.RawMessage(`not json at all`))
	assert.Equal(t, StatusNone, state.Status)
}

func TestHorizonAccessors(t *testing.T) {
	state := &SimulationState{}

	state.SetHorizonPath(HorizonNear, "a.webp")
	state.SetHorizonPath(HorizonFar, "b.webp")

	require.NotNil(t, state.HorizonPath(HorizonNear))
	require.NotNil(t, state.HorizonPath(HorizonFar))
	assert.Equal(t, "a.webp", *state.HorizonPath(HorizonNear))
	assert.Equal(t, "b.webp", *state.HorizonPath(HorizonFar))
}

func TestSetHorizonPathClearsPriorError(t *testing.T) {
	state := &SimulationState{}
	state.SetHorizonError(HorizonFar, "first attempt failed")
	state.SetHorizonPath(HorizonFar, "b.webp")

	assert.Empty(t, state.Horizon3Err)
}
