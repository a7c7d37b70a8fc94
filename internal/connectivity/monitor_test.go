package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
)

func newMonitor(probeURL string) *Monitor {
	return NewMonitor(Options{
		ProbeURL:      probeURL,
		ProbeTimeout:  time.Second,
		Freshness:     5 * time.Second,
		Stabilization: time.Millisecond,
		RetryDelay:    time.Millisecond,
		ProbeAttempts: 3,
	}, logging.NewNop())
}

func TestProbeAnyStatusMeansReachable(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			w.WriteHeader(status)
		}))

		m := newMonitor(srv.URL)
		require.NoError(t, m.Probe(context.Background()))
		assert.True(t, m.State().RemoteReachable, "status %d", status)
		srv.Close()
	}
}

func TestProbeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	m := newMonitor(srv.URL)
	err := m.Probe(context.Background())
	assert.ErrorIs(t, err, common.ErrProbeFailed)
	assert.False(t, m.State().RemoteReachable)
	assert.Equal(t, 1, m.State().ConsecutiveFailures)
}

func TestValidateUsesFreshCache(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer srv.Close()

	m := newMonitor(srv.URL)
	assert.True(t, m.Validate(context.Background(), false))
	assert.True(t, m.Validate(context.Background(), false))
	assert.Equal(t, int32(1), probes.Load())

	// force bypasses the freshness window
	assert.True(t, m.Validate(context.Background(), true))
	assert.Equal(t, int32(2), probes.Load())
}

func TestValidateLinkDownSkipsProbe(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer srv.Close()

	m := newMonitor(srv.URL)
	m.LinkDown()
	assert.False(t, m.Validate(context.Background(), true))
	assert.Zero(t, probes.Load())
}

func TestLinkUpWithFailingProbeStaysOffline(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	srv.Close()

	m := newMonitor(srv.URL)
	m.LinkDown()

	err := m.LinkUp(context.Background())
	require.Error(t, err)
	state := m.State()
	assert.True(t, state.LinkUp)
	assert.False(t, state.RemoteReachable)
	// bounded retries: exactly ProbeAttempts probes, then give up
	assert.Equal(t, 3, state.ConsecutiveFailures)
}

func TestLinkUpFiresReconnectOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := newMonitor(srv.URL)
	var reconnects atomic.Int32
	m.OnReconnect(func() { reconnects.Add(1) })

	m.LinkDown()
	require.NoError(t, m.LinkUp(context.Background()))
	assert.True(t, m.State().RemoteReachable)
	assert.Equal(t, int32(1), reconnects.Load())

	// already online: link-up again must not refire the callback
	require.NoError(t, m.LinkUp(context.Background()))
	assert.Equal(t, int32(1), reconnects.Load())
}

func TestLinkUpRecoversAfterTransientFailures(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probes.Add(1) < 3 {
			// drop the connection without answering
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
	}))
	defer srv.Close()

	m := newMonitor(srv.URL)
	m.LinkDown()
	require.NoError(t, m.LinkUp(context.Background()))
	assert.True(t, m.State().RemoteReachable)
	assert.Equal(t, int32(3), probes.Load())
}

func TestWatchFiresReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := newMonitor(srv.URL)
	reconnected := make(chan struct{}, 1)
	m.OnReconnect(func() {
		select {
		case reconnected <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, 5*time.Millisecond)

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reported reachability")
	}
}
