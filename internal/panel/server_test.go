package panel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mward29/triviapanel/internal/reconcile"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	controller := reconcile.NewController(clockwork.NewRealClock(), newCaptureDispatcher(),
		testDelays(), 50*time.Millisecond, false)
	t.Cleanup(controller.Stop)
	hub := NewHub(controller, nil, DefaultConnectionConfig(), false)
	controller.Bind(hub)

	s := NewServer(":0", hub)
	srv := httptest.NewServer(s.srv.Handler)
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestServerHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerInfoEndpointIsValidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var info infoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "trivia-panel", info.Service)
	require.Zero(t, info.Displays)
}
