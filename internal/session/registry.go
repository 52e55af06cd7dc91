package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/VoxelHaus/voxbridge/internal/logger"
	"github.com/VoxelHaus/voxbridge/internal/metrics"
)

// RemoveReason describes why a session left the registry
type RemoveReason string

const (
	ReasonClosed      RemoveReason = "closed"
	ReasonInactivity  RemoveReason = "inactivity_timeout"
	ReasonPingFailure RemoveReason = "ping_failure"
	ReasonShutdown    RemoveReason = "shutdown"
)

// Config holds per-session lifecycle tunables. Sessions snapshot these
// values when created; changing the config afterwards does not re-arm
// timers of existing sessions.
type Config struct {
	InactivityTimeout time.Duration
	PingInterval      time.Duration // 0 disables liveness probing
	MaxFailedPings    int
}

// DefaultConfig returns the stock session configuration
func DefaultConfig() Config {
	return Config{
		InactivityTimeout: 5 * time.Minute,
		PingInterval:      30 * time.Second,
		MaxFailedPings:    3,
	}
}

func (c Config) validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %v", c.InactivityTimeout)
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("ping interval cannot be negative, got %v", c.PingInterval)
	}
	if c.MaxFailedPings <= 0 {
		return fmt.Errorf("max failed pings must be positive, got %d", c.MaxFailedPings)
	}
	return nil
}

// Listener receives a consistent snapshot of all sessions after every
// registry mutation, and once immediately at subscribe time.
type Listener func(sessions []Snapshot)

// RemovalHandler is invoked after a session has been removed from the map
// and its timers cancelled. It may safely call Remove for the same id; the
// second call is a no-op because the entry is already gone.
type RemovalHandler func(s Snapshot, reason RemoveReason)

// Registry is the single authoritative map from session identifier to
// Session. Expiry is timer driven: each session carries a sliding inactivity
// timer that is re-armed on every activity.
type Registry struct {
	mu           sync.Mutex
	cfg          Config
	sessions     map[string]*Session
	listeners    map[int]Listener
	nextListener int
	onRemove     RemovalHandler
	closed       bool
}

// NewRegistry creates a registry with the given lifecycle configuration.
// Invalid configuration is a programmer error and is rejected here rather
// than surfacing later as a misbehaving timer.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Registry{
		cfg:       cfg,
		sessions:  make(map[string]*Session),
		listeners: make(map[int]Listener),
	}, nil
}

// Config returns the registry's session configuration
func (r *Registry) Config() Config {
	return r.cfg
}

// SetRemovalHandler registers the callback invoked on every removal.
// Set once during wiring, before traffic arrives.
func (r *Registry) SetRemovalHandler(h RemovalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = h
}

// Add registers a session under id. Adding an id that is already tracked is
// idempotent: it behaves like UpdateActivity and preserves the original
// ConnectedAt.
func (r *Registry) Add(id string, client ClientInfo) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if s, ok := r.sessions[id]; ok {
		r.touchLocked(s)
		r.mu.Unlock()
		return
	}

	now := time.Now()
	s := &Session{
		ID:            id,
		ConnectedAt:   now,
		LastActivity:  now,
		ClientName:    client.Name,
		ClientVersion: client.Version,
	}
	s.inactivity = time.AfterFunc(r.cfg.InactivityTimeout, func() {
		r.removeWithReason(id, ReasonInactivity)
	})
	r.sessions[id] = s
	list := r.listLocked()
	r.mu.Unlock()

	metrics.RecordSessionStart()
	logger.Info("Session registered: %s (client: %s %s)", id, client.Name, client.Version)
	r.notify(list)
}

// Remove drops a session after an explicit close request. No-op if absent.
func (r *Registry) Remove(id string) {
	r.removeWithReason(id, ReasonClosed)
}

// UpdateActivity bumps LastActivity, resets the failed-ping counter, and
// re-arms the inactivity timer (sliding window). No-op if absent.
func (r *Registry) UpdateActivity(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		r.touchLocked(s)
	}
}

// RecordPingSent notes that a liveness probe was dispatched for id
func (r *Registry) RecordPingSent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastPingAt = time.Now()
	}
}

// RecordPongReceived notes a successful probe round-trip. A pong behaves
// like activity: it resets the failure count and the inactivity timer.
func (r *Registry) RecordPongReceived(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastPongAt = time.Now()
		r.touchLocked(s)
	}
}

// RecordPingFailed increments the consecutive-failure count for id.
// Crossing the configured threshold evicts the session; the return value
// tells the caller to stop probing that identifier.
func (r *Registry) RecordPingFailed(id string) (evicted bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return true
	}
	s.FailedPings++
	failures := s.FailedPings
	r.mu.Unlock()

	metrics.PingFailures.Inc()
	if failures >= r.cfg.MaxFailedPings {
		logger.Info("Session %s exceeded %d failed pings, evicting", id, r.cfg.MaxFailedPings)
		r.removeWithReason(id, ReasonPingFailure)
		return true
	}
	return false
}

// Get returns a snapshot of the session with the given id
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.snapshot(), true
	}
	return Snapshot{}, false
}

// Has reports whether id is currently tracked
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Count returns the number of tracked sessions
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns snapshots of all tracked sessions
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

// Subscribe registers a listener. The listener is invoked immediately with
// the current session list, then again after every add/remove. The returned
// function unsubscribes.
func (r *Registry) Subscribe(l Listener) func() {
	r.mu.Lock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = l
	list := r.listLocked()
	r.mu.Unlock()

	l(list)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// Close tears down every tracked session and stops accepting new ones.
// This is a forced teardown, not a graceful drain: in-flight dispatches are
// not awaited, only future routing stops.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.removeWithReason(id, ReasonShutdown)
	}
}

// touchLocked is the shared activity path. Caller holds r.mu.
func (r *Registry) touchLocked(s *Session) {
	s.LastActivity = time.Now()
	s.FailedPings = 0
	if s.inactivity != nil {
		s.inactivity.Reset(r.cfg.InactivityTimeout)
	}
}

// removeWithReason removes id from the map BEFORE invoking listeners or the
// removal handler. The ordering is the re-entrancy guarantee: a handler that
// closes resources and ends up calling Remove for the same id finds nothing
// to remove.
func (r *Registry) removeWithReason(id string, reason RemoveReason) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if reason == ReasonInactivity {
		// The timer callback may have been blocked on the lock while
		// activity arrived; that activity's Reset landed on an
		// already-fired timer. The session is still fresh, so re-arm
		// for the remainder of the window instead of evicting.
		if idle := time.Since(s.LastActivity); idle < r.cfg.InactivityTimeout {
			if s.inactivity != nil {
				s.inactivity.Reset(r.cfg.InactivityTimeout - idle)
			}
			r.mu.Unlock()
			return false
		}
	}
	s.stopTimers()
	delete(r.sessions, id)
	snap := s.snapshot()
	list := r.listLocked()
	handler := r.onRemove
	r.mu.Unlock()

	metrics.RecordSessionEnd(string(reason), time.Since(snap.ConnectedAt).Seconds())
	logger.Info("Session removed: %s (reason: %s, lifetime: %v)", id, reason, time.Since(snap.ConnectedAt))

	r.notify(list)
	if handler != nil {
		handler(snap, reason)
	}
	return true
}

func (r *Registry) listLocked() []Snapshot {
	list := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s.snapshot())
	}
	return list
}

// notify fans the snapshot out to subscribers. Called without holding r.mu
// so a listener may call back into the registry.
func (r *Registry) notify(list []Snapshot) {
	r.mu.Lock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.mu.Unlock()

	for _, l := range ls {
		l(list)
	}
}
