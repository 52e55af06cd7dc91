package session

import (
	"context"
	"sync"
	"time"

	"github.com/VoxelHaus/voxbridge/internal/logger"
)

// PingFunc probes one session's client out of band. It returns true when the
// probe round-tripped successfully. Errors and panics count as failed probes.
type PingFunc func(ctx context.Context, sessionID string) (bool, error)

// probeTimeout bounds a single probe round-trip
const probeTimeout = 10 * time.Second

// Monitor periodically probes registered sessions and lets the registry
// evict the ones that stop answering. Each session cycles through idle,
// probing, then either alive (interval re-armed) or failed (failure counter
// bumped); hitting the failure threshold removes the session and ends its
// probe loop.
type Monitor struct {
	registry *Registry
	ping     PingFunc
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	probes      map[string]context.CancelFunc
	unsubscribe func()
}

// NewMonitor creates a liveness monitor. An interval of 0 disables probing
// entirely (explicit opt-out, not an error).
func NewMonitor(registry *Registry, ping PingFunc, interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		registry: registry,
		ping:     ping,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		probes:   make(map[string]context.CancelFunc),
	}
}

// Start begins tracking the registry's session list and probing each entry
func (m *Monitor) Start() {
	if m.interval <= 0 {
		logger.Info("Liveness probing disabled (interval 0)")
		return
	}
	m.unsubscribe = m.registry.Subscribe(m.sync)
}

// Stop cancels every probe loop and waits for them to exit
func (m *Monitor) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.cancel()
	m.wg.Wait()
}

// sync reconciles probe loops against the registry's current session list
func (m *Monitor) sync(sessions []Snapshot) {
	current := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		current[s.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cancel := range m.probes {
		if !current[id] {
			cancel()
			delete(m.probes, id)
		}
	}

	for id := range current {
		if _, running := m.probes[id]; running {
			continue
		}
		ctx, cancel := context.WithCancel(m.ctx)
		m.probes[id] = cancel
		m.wg.Add(1)
		go m.probeLoop(ctx, id)
	}
}

// probeLoop probes one session until it is evicted or the monitor stops
func (m *Monitor) probeLoop(ctx context.Context, id string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.registry.RecordPingSent(id)
			if m.probe(id) {
				m.registry.RecordPongReceived(id)
				continue
			}
			if evicted := m.registry.RecordPingFailed(id); evicted {
				return
			}
		}
	}
}

// probe runs one round-trip. A panic or error from the ping callback is the
// same as a false result; the monitor loop must never crash because of it.
func (m *Monitor) probe(id string) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Ping callback panicked for session %s: %v", id, r)
			alive = false
		}
	}()

	ctx, cancel := context.WithTimeout(m.ctx, probeTimeout)
	defer cancel()

	ok, err := m.ping(ctx, id)
	if err != nil {
		logger.Info("Ping failed for session %s: %v", id, err)
		return false
	}
	return ok
}
