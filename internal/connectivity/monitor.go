// Package connectivity tracks whether the backend is actually reachable.
// A network link being up is only a hint: captive portals and dead uplinks
// answer nothing, so the only trusted signal is a live probe against the
// backend itself.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
)

// State is a snapshot of the monitor's view of the connection.
type State struct {
	// LinkUp mirrors the platform's link signal, an optimistic hint.
	LinkUp bool

	// RemoteReachable is true only after a probe got any HTTP response.
	RemoteReachable bool

	LastProbeAt         time.Time
	ConsecutiveFailures int
}

// Options configures probing behavior. Zero values fall back to defaults.
type Options struct {
	// ProbeURL is the endpoint probed with a HEAD request.
	ProbeURL string

	ProbeTimeout time.Duration

	// Freshness bounds how old a cached probe result may be before
	// Validate re-probes.
	Freshness time.Duration

	// Stabilization is the delay after a link-up signal before the first
	// probe, letting DHCP and DNS settle.
	Stabilization time.Duration

	// RetryDelay separates the bounded probe retries after link-up.
	RetryDelay time.Duration

	// ProbeAttempts is the total number of probes tried on link-up.
	ProbeAttempts int
}

func (o *Options) withDefaults() {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 3 * time.Second
	}
	if o.Freshness <= 0 {
		o.Freshness = 5 * time.Second
	}
	if o.Stabilization <= 0 {
		o.Stabilization = time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.ProbeAttempts <= 0 {
		o.ProbeAttempts = 3
	}
}

// Monitor owns the reachability state. All methods are safe for concurrent
// use.
type Monitor struct {
	opts Options
	http *http.Client
	log  logging.Logger

	// onReconnect runs once per offline-to-online transition.
	onReconnect func()

	mu    sync.Mutex
	state State
}

func NewMonitor(opts Options, log logging.Logger) *Monitor {
	opts.withDefaults()
	return &Monitor{
		opts: opts,
		http: &http.Client{Timeout: opts.ProbeTimeout},
		log:  log,
		state: State{
			// assume the link is up until the platform says otherwise
			LinkUp: true,
		},
	}
}

// OnReconnect registers the callback invoked after reachability is
// re-established. Must be called before any probing starts.
func (m *Monitor) OnReconnect(fn func()) {
	m.onReconnect = fn
}

// State returns the current snapshot.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Probe sends one HEAD request to the probe endpoint. Any HTTP response,
// including 4xx and 5xx, proves the backend is reachable; only a transport
// failure means unreachable.
func (m *Monitor) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.opts.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrProbeFailed, err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		m.recordProbe(ctx, false)
		return fmt.Errorf("%w: %v", common.ErrProbeFailed, err)
	}
	resp.Body.Close()
	m.recordProbe(ctx, true)
	return nil
}

func (m *Monitor) recordProbe(ctx context.Context, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasReachable := m.state.RemoteReachable
	m.state.LastProbeAt = time.Now()
	m.state.RemoteReachable = ok && m.state.LinkUp
	if ok {
		m.state.ConsecutiveFailures = 0
	} else {
		m.state.ConsecutiveFailures++
	}

	if wasReachable != m.state.RemoteReachable {
		m.log.Info(ctx, "reachability changed", "reachable", m.state.RemoteReachable)
	}
}

// Validate answers "can I reach the backend right now". A cached probe
// result younger than the freshness window is reused unless force is set;
// a device claiming its link is down is offline without probing.
func (m *Monitor) Validate(ctx context.Context, force bool) bool {
	m.mu.Lock()
	if !m.state.LinkUp {
		m.mu.Unlock()
		return false
	}
	if !force && time.Since(m.state.LastProbeAt) < m.opts.Freshness && !m.state.LastProbeAt.IsZero() {
		reachable := m.state.RemoteReachable
		m.mu.Unlock()
		return reachable
	}
	m.mu.Unlock()

	if err := m.Probe(ctx); err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
		return false
	}
	return true
}

// LinkUp handles the platform's link-restored signal: wait out the
// stabilization window, then probe a bounded number of times. Reachability
// flips online only when a probe succeeds; if every attempt fails the state
// stays offline until the next signal or periodic probe.
func (m *Monitor) LinkUp(ctx context.Context) error {
	m.mu.Lock()
	m.state.LinkUp = true
	m.mu.Unlock()

	select {
	case <-time.After(m.opts.Stabilization):
	case <-ctx.Done():
		return ctx.Err()
	}

	wasReachable := m.State().RemoteReachable
	backoff := retry.WithMaxRetries(uint64(m.opts.ProbeAttempts-1), retry.NewConstant(m.opts.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.Probe(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.log.Warn(ctx, "backend unreachable after link-up", "attempts", m.opts.ProbeAttempts)
		return err
	}

	if !wasReachable && m.onReconnect != nil {
		m.onReconnect()
	}
	return nil
}

// LinkDown handles the platform's link-lost signal: the device is offline
// immediately, no probe needed.
func (m *Monitor) LinkDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LinkUp = false
	m.state.RemoteReachable = false
}

// Watch probes periodically until ctx is cancelled, recovering from silent
// outages that produce no link signal. An offline-to-online transition
// discovered here fires the reconnect callback too.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasReachable := m.State().RemoteReachable
			if err := m.Probe(ctx); err != nil {
				continue
			}
			if !wasReachable && m.onReconnect != nil {
				m.onReconnect()
			}
		}
	}
}
