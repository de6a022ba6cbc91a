package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rldls/doorlog/internal/logging"
)

// Monitor watches connectivity and schedules drain cycles: once at
// start, on every offline-to-online transition, and on a slow periodic
// tick as a safety net for entries left behind by an aborted cycle.
type Monitor struct {
	engine        *Engine
	remote        Remote
	probeInterval time.Duration
	drainInterval time.Duration

	mu        sync.RWMutex
	isOnline  bool
	isRunning bool
	lastDrain time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor over the engine.
func NewMonitor(engine *Engine, remote Remote, probeInterval, drainInterval time.Duration) *Monitor {
	return &Monitor{
		engine:        engine,
		remote:        remote,
		probeInterval: probeInterval,
		drainInterval: drainInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the probe and drain loops and runs the startup drain.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	m.probeOnce(ctx)
	m.drain(ctx)

	m.wg.Add(2)
	go m.probeLoop(ctx)
	go m.drainLoop(ctx)

	logging.Info("sync monitor started")
}

// Stop shuts the loops down and waits for them.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	logging.Info("sync monitor stopped")
}

// IsOnline reports the last observed connectivity.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// TriggerDrain requests an immediate cycle, e.g. after an enqueue while
// online. A cycle already in flight absorbs the request.
func (m *Monitor) TriggerDrain(ctx context.Context) {
	m.drain(ctx)
}

// probeLoop pings the server and flips the online flag. The transition
// to online is what fires a drain; staying online does not.
func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.probeOnce(ctx) {
				m.drain(ctx)
			}
		}
	}
}

// probeOnce updates the online flag and reports whether the device just
// came back online.
func (m *Monitor) probeOnce(ctx context.Context) (cameOnline bool) {
	online := m.remote.Ping(ctx) == nil

	m.mu.Lock()
	wasOnline := m.isOnline
	m.isOnline = online
	m.mu.Unlock()

	if wasOnline != online {
		logging.Info("connectivity changed", map[string]interface{}{
			"online": online,
		})
	}
	return online && !wasOnline
}

// drainLoop is the periodic safety net.
func (m *Monitor) drainLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.IsOnline() {
				m.drain(ctx)
			}
		}
	}
}

func (m *Monitor) drain(ctx context.Context) {
	if _, ran := m.engine.Drain(ctx); ran {
		m.mu.Lock()
		m.lastDrain = time.Now()
		m.mu.Unlock()
	}
}

// Status is a snapshot for the status command.
type Status struct {
	Online    bool
	LastDrain time.Time
}

// Status returns the current monitor snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{Online: m.isOnline, LastDrain: m.lastDrain}
}
