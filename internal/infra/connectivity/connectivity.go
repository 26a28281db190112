// Package connectivity tracks whether the terminal can reach the
// server of record and raises edge-triggered online/offline events.
//
// The state is a hint, never a guarantee: a positive signal only means
// the last probe or host notification said the network was up, so
// callers still handle submission failures on their own.
package connectivity

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Monitor holds the current connectivity state and its subscribers.
// It never touches storage; it only observes and notifies.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(initiallyOnline bool) *Monitor {
	return &Monitor{online: initiallyOnline}
}

// Online is the point-in-time connectivity check.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on every edge transition.
// Callbacks run synchronously in registration order; keep them cheap
// or hand off to a goroutine.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline records a connectivity observation. Subscribers fire only
// when the state actually flips (edge-triggered, not level-triggered).
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	log.Printf("[connectivity] transition: online=%v", online)
	for _, fn := range subs {
		fn(online)
	}
}

// ─── Prober ─────────────────────────────────────────────────────────────────

// Prober feeds a Monitor by polling a health endpoint on an interval.
// It stands in for a host runtime's native network-status events on
// platforms that have none.
type Prober struct {
	monitor  *Monitor
	client   *http.Client
	url      string
	interval time.Duration
}

// NewProber creates a prober polling url every interval.
func NewProber(m *Monitor, url string, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		monitor:  m,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		interval: interval,
	}
}

// Run probes until ctx is cancelled. An immediate probe runs first so
// the monitor starts from an observed state rather than a guess.
func (p *Prober) Run(ctx context.Context) {
	p.monitor.SetOnline(p.probe(ctx))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.monitor.SetOnline(p.probe(ctx))
		}
	}
}

func (p *Prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
