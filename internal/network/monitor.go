// Package network tracks whether the remote side is reachable.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jaekwang-park/tasksync/internal/observe"
)

const DefaultInterval = 5 * time.Second

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Prober checks connectivity once. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Monitor samples a Prober on demand and on a fixed interval, and notifies
// subscribers when the status changes.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
	events *observe.Subject[Status]
}

func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		status:   StatusUnknown,
		events:   observe.New[Status](),
	}
}

// CurrentStatus probes now and returns the result.
func (m *Monitor) CurrentStatus(ctx context.Context) Status {
	s := StatusOnline
	if err := m.prober.Probe(ctx); err != nil {
		m.logger.Debug("connectivity probe failed", "error", err)
		s = StatusOffline
	}
	m.record(s)
	return s
}

// Last returns the most recent observation without probing.
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) Online(ctx context.Context) bool {
	return m.CurrentStatus(ctx) == StatusOnline
}

// Subscribe delivers every status change from now on.
func (m *Monitor) Subscribe() (<-chan Status, func()) {
	return m.events.Subscribe()
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CurrentStatus(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CurrentStatus(ctx)
		}
	}
}

func (m *Monitor) record(s Status) {
	m.mu.Lock()
	prev := m.status
	m.status = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Info("network status changed", "from", prev, "to", s)
		m.events.Publish(s)
	}
}

// HTTPProber treats any HTTP response below 500 as reachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.URL, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: status %d", p.URL, resp.StatusCode)
	}
	return nil
}

var _ Prober = (*HTTPProber)(nil)
