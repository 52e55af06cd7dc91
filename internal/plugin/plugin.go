// Package plugin owns the wiring and lifecycle of the bridge inside the host
// editor. All long-lived components hang off a Context created at load time;
// there is no package-level mutable state, so a load/unload cycle starts from
// a clean slate.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/VoxelHaus/voxbridge/internal/config"
	"github.com/VoxelHaus/voxbridge/internal/editor"
	"github.com/VoxelHaus/voxbridge/internal/journal"
	"github.com/VoxelHaus/voxbridge/internal/logger"
	"github.com/VoxelHaus/voxbridge/internal/rpc"
	"github.com/VoxelHaus/voxbridge/internal/session"
	"github.com/VoxelHaus/voxbridge/internal/transport"
	"github.com/VoxelHaus/voxbridge/internal/validation"
)

// Notifier surfaces plugin-level conditions to the host UI. Implementations
// must be safe for concurrent use.
type Notifier interface {
	// Notify shows an informational message to the user
	Notify(message string)
	// FatalError reports a condition the plugin cannot recover from, such as
	// a denied network capability at listen time
	FatalError(err error)
}

// ErrAlreadyLoaded is returned by Load when the context is already running
var ErrAlreadyLoaded = errors.New("plugin already loaded")

// closeSessionTimeout bounds the dispatcher notification when the registry
// evicts a session the client never explicitly closed
const closeSessionTimeout = 5 * time.Second

// Context owns every component of a running bridge: registry, liveness
// monitor, dispatcher, journal, janitor, and the connection server.
type Context struct {
	cfg      *config.Config
	ed       editor.Editor
	notifier Notifier

	mu         sync.Mutex
	loaded     bool
	registry   *session.Registry
	monitor    *session.Monitor
	dispatcher *rpc.Dispatcher
	store      *journal.Store
	janitor    *journal.Janitor
	server     *transport.Server

	unsubscribe func()
	handshakes  chan session.Snapshot
	serveErr    chan error
}

// New creates an unloaded plugin context. The editor is the host's object
// model boundary; notifier may not be nil.
func New(cfg *config.Config, ed editor.Editor, notifier Notifier) *Context {
	return &Context{
		cfg:      cfg,
		ed:       ed,
		notifier: notifier,
	}
}

// Handshakes delivers a snapshot for every session that completes its
// handshake while the plugin is loaded. The channel is buffered; callers that
// fall behind lose notifications, never block the transport.
func (c *Context) Handshakes() <-chan session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshakes
}

// Sessions returns snapshots of all live sessions, for the host status UI
func (c *Context) Sessions() []session.Snapshot {
	c.mu.Lock()
	reg := c.registry
	c.mu.Unlock()
	if reg == nil {
		return nil
	}
	return reg.List()
}

// SubscribeSessions registers a host status listener on the live registry.
// It returns an unsubscribe function, or nil when the plugin is not loaded.
func (c *Context) SubscribeSessions(l session.Listener) func() {
	c.mu.Lock()
	reg := c.registry
	c.mu.Unlock()
	if reg == nil {
		return nil
	}
	return reg.Subscribe(l)
}

// CloseSession disconnects one session on behalf of the host UI. The
// identifier is validated before it touches the registry; closing an unknown
// session is an error so the UI can tell a stale button from a success.
func (c *Context) CloseSession(id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	c.mu.Lock()
	reg := c.registry
	c.mu.Unlock()
	if reg == nil {
		return errors.New("plugin not loaded")
	}
	if !reg.Has(id) {
		return fmt.Errorf("no such session: %s", id)
	}
	reg.Remove(id)
	return nil
}

// ServeError reports an unexpected accept-loop failure after a successful
// Load. It never fires during a deliberate Unload.
func (c *Context) ServeError() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serveErr
}

// Load builds and starts every component. A bind failure is fatal: the host
// denied the network capability and the plugin must not run half-initialized,
// so the error is surfaced through the notifier and returned.
func (c *Context) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return ErrAlreadyLoaded
	}

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := session.NewRegistry(session.Config{
		InactivityTimeout: c.cfg.Session.InactivityTimeout(),
		PingInterval:      c.cfg.Session.PingInterval(),
		MaxFailedPings:    c.cfg.Session.MaxFailedPings,
	})
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}

	dispatcher := rpc.NewDispatcher(c.ed)

	var store *journal.Store
	var janitor *journal.Janitor
	if c.cfg.Journal.Enabled {
		store, err = journal.NewStore(c.cfg.Journal.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open session journal: %w", err)
		}
		retention := time.Duration(c.cfg.Journal.RetentionDays) * 24 * time.Hour
		janitor, err = journal.NewJanitor(store, c.cfg.Journal.CleanupSchedule, retention)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to create journal janitor: %w", err)
		}
	}

	server := transport.NewServer(transport.Config{
		Port:              c.cfg.Server.Port,
		MountPath:         c.cfg.Server.MountPath,
		RequestsPerSecond: c.cfg.RateLimit.RequestsPerSecond,
		Burst:             c.cfg.RateLimit.Burst,
	}, dispatcher, registry)

	if err := server.Listen(); err != nil {
		if store != nil {
			_ = store.Close()
		}
		err = fmt.Errorf("cannot start bridge: %w", err)
		c.notifier.FatalError(err)
		return err
	}

	c.registry = registry
	c.dispatcher = dispatcher
	c.store = store
	c.janitor = janitor
	c.server = server
	c.handshakes = make(chan session.Snapshot, 16)
	c.serveErr = make(chan error, 1)

	registry.SetRemovalHandler(c.removalHandler(dispatcher, store))
	c.unsubscribe = registry.Subscribe(c.watchHandshakes())

	c.monitor = session.NewMonitor(registry, dispatcher.PingSession, c.cfg.Session.PingInterval())
	c.monitor.Start()

	if janitor != nil {
		janitor.Start()
	}

	serveErr := c.serveErr
	go func() {
		if err := server.Serve(); err != nil {
			logger.Error("Accept loop failed: %v", err)
			serveErr <- err
		}
	}()

	c.loaded = true
	c.notifier.Notify(fmt.Sprintf("voxbridge listening on port %d", c.cfg.Server.Port))
	logger.Info("Plugin loaded (port %d, mount path %s)", c.cfg.Server.Port, c.cfg.Server.MountPath)
	return nil
}

// Unload force-stops every component in reverse dependency order. In-flight
// dispatches are abandoned, not drained; the host contract requires unload to
// return promptly.
func (c *Context) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return
	}

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.janitor != nil {
		c.janitor.Stop()
	}
	c.monitor.Stop()
	_ = c.server.Close()
	if c.store != nil {
		_ = c.store.Close()
	}
	close(c.handshakes)

	c.registry = nil
	c.monitor = nil
	c.dispatcher = nil
	c.store = nil
	c.janitor = nil
	c.server = nil
	c.handshakes = nil
	c.loaded = false

	logger.Info("Plugin unloaded")
}

// Install performs first-time setup: data and log directories plus a default
// config file when none exists. Safe to call repeatedly.
func (c *Context) Install(configDir string) error {
	dirs := []string{configDir, c.cfg.Journal.DataDir, c.cfg.LogDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return config.WriteDefault(configDir)
}

// Uninstall removes persisted plugin state. The plugin must be unloaded
// first; uninstalling a running bridge is a programmer error.
func (c *Context) Uninstall() error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return errors.New("cannot uninstall while loaded")
	}
	if c.cfg.Journal.DataDir != "" {
		if err := os.RemoveAll(c.cfg.Journal.DataDir); err != nil {
			return fmt.Errorf("failed to remove journal data: %w", err)
		}
	}
	return nil
}

// watchHandshakes returns a registry listener that diffs successive session
// lists and signals each newly handshaken session on the handshake channel.
func (c *Context) watchHandshakes() session.Listener {
	known := make(map[string]bool)
	var mu sync.Mutex
	ch := c.handshakes
	store := c.store

	return func(sessions []session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		current := make(map[string]bool, len(sessions))
		for _, s := range sessions {
			current[s.ID] = true
			if known[s.ID] {
				continue
			}
			known[s.ID] = true

			select {
			case ch <- s:
			default:
			}
			record(store, &journal.Entry{
				SessionID:     s.ID,
				Event:         journal.EventHandshake,
				ClientName:    s.ClientName,
				ClientVersion: s.ClientVersion,
			})
		}
		for id := range known {
			if !current[id] {
				delete(known, id)
			}
		}
	}
}

// removalHandler builds the callback that runs after the registry has dropped
// a session. It journals the removal and, for evictions the client did not
// request, tells the dispatcher to discard its per-session state. The
// dispatcher and store are captured by value: a timer-driven eviction can
// still be executing while Unload nils the Context fields.
func (c *Context) removalHandler(d *rpc.Dispatcher, store *journal.Store) session.RemovalHandler {
	return func(s session.Snapshot, reason session.RemoveReason) {
		event := journal.EventClosed
		if reason != session.ReasonClosed {
			event = journal.EventEvicted
		}
		record(store, &journal.Entry{
			SessionID:     s.ID,
			Event:         event,
			Reason:        string(reason),
			ClientName:    s.ClientName,
			ClientVersion: s.ClientVersion,
		})

		if reason == session.ReasonInactivity || reason == session.ReasonPingFailure {
			ctx, cancel := context.WithTimeout(context.Background(), closeSessionTimeout)
			defer cancel()
			if err := d.CloseSession(ctx, s.ID); err != nil {
				logger.Error("Failed to close dispatcher session %s: %v", s.ID, err)
			}
		}
	}
}

func record(store *journal.Store, entry *journal.Entry) {
	if store == nil {
		return
	}
	if err := store.Record(entry); err != nil {
		logger.Error("Failed to journal session event: %v", err)
	}
}
