// Package host implements the host-side GATT session control plane.
//
// A Host owns one attribute-protocol engine and multiplexes client- and
// server-role bindings for multiple independent callers on top of it.
// Client-role bindings are keyed by an opaque caller token and a peer
// identifier; server-role bindings are keyed by their own identity.
//
// Table-mutating methods (BindServer, BindClient, UnbindClient, UnbindAll,
// CloseBindings, Shutdown) are not locked against each other: they must
// all run on the host's owning context, the serial executor reachable
// through Dispatch. Disconnect cleanup is posted onto that same executor,
// so no table is ever touched from two goroutines. The remote service
// watcher is the one exception; it has its own lock and may be replaced
// from any goroutine, including from within its own invocation.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-host/api/config"
	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/eventbus"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/bluetuith-org/gatt-host/internal/dispatch"
	"github.com/bluetuith-org/gatt-host/platform"
)

// Host multiplexes GATT role bindings over a single engine instance.
type Host struct {
	engine gatt.Engine
	disp   *dispatch.Serial

	servers map[*serverBinding]struct{}
	clients map[gatt.Token]map[gatt.PeerID]*clientBinding

	watcherMu sync.Mutex
	watcher   gatt.RemoteServiceWatcher

	closed atomic.Bool
}

// New creates a host backed by a freshly created and initialized
// platform engine.
func New(cfg config.Configuration) (*Host, error) {
	engine, _ := platform.NewEngine(cfg)

	if err := engine.Initialize(); err != nil {
		return nil,
			fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "engine-init"),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot initialize the attribute-protocol engine"),
			)
	}

	return NewWithEngine(engine), nil
}

// NewWithEngine creates a host around a caller-supplied, already
// initialized engine. The host's relay is registered as the engine's
// remote service watcher before NewWithEngine returns, so no discovery
// event can race construction.
func NewWithEngine(engine gatt.Engine) *Host {
	h := &Host{
		engine:  engine,
		disp:    dispatch.NewSerial(),
		servers: make(map[*serverBinding]struct{}),
		clients: make(map[gatt.Token]map[gatt.PeerID]*clientBinding),
	}

	engine.RegisterRemoteServiceWatcher(h.relayRemoteService)

	return h
}

// Dispatch posts fn onto the host's owning context. It reports whether
// the task was accepted; after Shutdown all posts are dropped.
func (h *Host) Dispatch(fn func()) bool {
	return h.disp.Post(fn)
}

// DispatchWait posts fn onto the host's owning context and blocks until
// it has run. It must not be called from the owning context itself.
func (h *Host) DispatchWait(fn func()) bool {
	return h.disp.PostWait(fn)
}

// SetRemoteServiceWatcher replaces the callback invoked when a GATT
// service is discovered on a connected peer. A nil watcher disables
// delivery. Safe to call from any goroutine, including from within a
// running watcher invocation.
func (h *Host) SetRemoteServiceWatcher(watcher gatt.RemoteServiceWatcher) {
	h.watcherMu.Lock()
	h.watcher = watcher
	h.watcherMu.Unlock()
}

// Shutdown tears the host down: the engine is stopped first so it cannot
// fire the relay anymore, the watcher is cleared, all role bindings are
// dropped and the owning executor stops accepting tasks. Runs on the
// owning context. A second call returns errorkinds.ErrHostClosed.
func (h *Host) Shutdown() error {
	if !h.closed.CompareAndSwap(false, true) {
		return errorkinds.ErrHostClosed
	}

	err := h.engine.ShutDown()

	h.watcherMu.Lock()
	h.watcher = nil
	h.watcherMu.Unlock()

	h.CloseBindings()
	h.disp.Stop()

	eventbus.Publish(gatt.EventSessionStopped, gatt.BindingEvent{})

	return err
}

// relayRemoteService forwards engine discovery notifications to the
// registered watcher. Invoked from the engine's own goroutine. The
// watcher is copied out under the lock and invoked after release, so a
// watcher that re-registers itself does not deadlock.
func (h *Host) relayRemoteService(peer gatt.PeerID, service gatt.RemoteService) {
	if h.closed.Load() {
		return
	}

	h.watcherMu.Lock()
	watcher := h.watcher
	h.watcherMu.Unlock()

	if watcher != nil {
		watcher(peer, service)
	}

	eventbus.Publish(gatt.EventServiceDiscovered, gatt.ServiceEvent{Peer: peer, Service: service})
}
