package aging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-aging-server/modules/common/model"
)

func newWatchServer(t *testing.T) (*testRig, *httptest.Server) {
	t.Helper()
	rig := newTestRig(t)
	r := mux.NewRouter()
	NewHandler(rig.service).RegisterWatchRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return rig, srv
}

func watchURL(srv *httptest.Server, scanID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/simulations/watch/" + scanID
}

func TestHandleWatchConnectTriggersFirstRun(t *testing.T) {
	rig, srv := newWatchServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(watchURL(srv, "scan-001"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var resp StatusResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, model.StatusQueued, resp.Status)
	require.NotNil(t, resp.Simulations)
	assert.Equal(t, []string{"scan-001"}, rig.queue.snapshot())
}

func TestHandleWatchClosesAfterTerminalState(t *testing.T) {
	rig, srv := newWatchServer(t)
	path1 := "simulations/scan-001_1y_test.webp"
	done := &model.SimulationState{Status: model.StatusComplete, Horizon1Path: &path1}
	blob, err := done.Encode()
	require.NoError(t, err)
	rig.store.scan.SimulationData = blob

	conn, _, err := websocket.DefaultDialer.Dial(watchURL(srv, "scan-001"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// The terminal payload is delivered before the stream closes.
	var resp StatusResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, model.StatusComplete, resp.Status)
	require.NotNil(t, resp.Simulations.Horizon1)
	assert.Equal(t, path1, *resp.Simulations.Horizon1)

	// No further messages: the server side closes the connection.
	err = conn.ReadJSON(&resp)
	assert.Error(t, err)

	// Terminal scans are never re-queued by a watch connect.
	assert.Empty(t, rig.queue.snapshot())
}

func TestHandleWatchUnknownScanRejectsBeforeUpgrade(t *testing.T) {
	_, srv := newWatchServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(watchURL(srv, "missing"), nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
