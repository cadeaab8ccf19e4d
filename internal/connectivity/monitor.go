// Package connectivity tracks whether the remote store is reachable.
// The repository consults it to pick the online or offline write
// branch; the sync processor drains the queue on each offline->online
// edge.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"herdsync/internal/logging"
)

// Prober is the health probe, satisfied by the api client.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor polls the remote store's health endpoint and exposes the
// current reachability plus edge-triggered online callbacks.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      *logrus.Entry

	mu       sync.Mutex
	online   bool
	onOnline []func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Monitor. The initial state is offline until the first
// successful probe or MarkOnline call.
func New(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		log:      logging.Component("connectivity"),
		stopCh:   make(chan struct{}),
	}
}

// Online reports current reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers a callback fired on every offline->online edge.
// Callbacks run on the monitor's goroutine and must not block.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// MarkOnline records reachability observed out-of-band (a successful
// online write), firing edge callbacks when the state flips.
func (m *Monitor) MarkOnline() {
	m.set(true)
}

// MarkOffline records a transport failure observed out-of-band.
func (m *Monitor) MarkOffline() {
	m.set(false)
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	callbacks := m.onOnline
	m.mu.Unlock()

	if online == was {
		return
	}
	m.log.WithField("online", online).Info("connectivity changed")
	if online {
		for _, fn := range callbacks {
			fn()
		}
	}
}

// Start launches the probe loop. Stop or ctx cancellation ends it.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop ends the probe loop and waits for it to finish.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	m.set(m.prober.Health(probeCtx) == nil)
}
