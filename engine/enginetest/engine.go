// Package enginetest provides an in-memory engine double for tests.
// It records role binds, fabricates protocol connections and lets tests
// inject remote service discovery from any goroutine.
package enginetest

import (
	"sync"
	"sync/atomic"

	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/gatt"
)

// Engine is a fake attribute-protocol engine.
type Engine struct {
	mu       sync.Mutex
	watcher  gatt.RemoteServiceWatcher
	services map[gatt.PeerID][]gatt.RemoteService

	initialized bool
	shutdowns   int

	clientBinds []*Conn
	serverBinds []*Conn
}

// Conn is a fake role binding handed out by the engine.
type Conn struct {
	// Peer is the bound peer for client-role conns, zero otherwise.
	Peer gatt.PeerID

	closed atomic.Bool
}

// Close marks the conn closed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return errorkinds.ErrEndpointClosed
	}

	return nil
}

// Closed reports whether the conn was closed.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// New returns a fresh fake engine.
func New() *Engine {
	return &Engine{services: make(map[gatt.PeerID][]gatt.RemoteService)}
}

// Initialize marks the engine initialized.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.initialized = true

	return nil
}

// ShutDown counts shutdowns; discovery injected afterwards is still
// delivered so tests can probe post-teardown relay behavior.
func (e *Engine) ShutDown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.shutdowns++

	return nil
}

// RegisterRemoteServiceWatcher stores the discovery notification target.
func (e *Engine) RegisterRemoteServiceWatcher(watcher gatt.RemoteServiceWatcher) {
	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()
}

// BindRemoteClient fabricates a client-role conn for peer.
func (e *Engine) BindRemoteClient(peer gatt.PeerID, _ gatt.Endpoint) (gatt.ClientConn, error) {
	conn := &Conn{Peer: peer}

	e.mu.Lock()
	e.clientBinds = append(e.clientBinds, conn)
	e.mu.Unlock()

	return conn, nil
}

// BindLocalServer fabricates a server-role conn.
func (e *Engine) BindLocalServer(_ gatt.Endpoint) (gatt.ServerConn, error) {
	conn := &Conn{}

	e.mu.Lock()
	e.serverBinds = append(e.serverBinds, conn)
	e.mu.Unlock()

	return conn, nil
}

// AddPeerService records a service on peer and delivers it to the
// registered watcher on the calling goroutine, which stands in for the
// engine's own delivery context.
func (e *Engine) AddPeerService(peer gatt.PeerID, service gatt.RemoteService) {
	e.mu.Lock()
	e.services[peer] = append(e.services[peer], service)
	watcher := e.watcher
	e.mu.Unlock()

	if watcher != nil {
		watcher(peer, service)
	}
}

// Shutdowns returns how many times ShutDown was called.
func (e *Engine) Shutdowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.shutdowns
}

// Initialized reports whether Initialize was called.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.initialized
}

// ClientBinds returns every client-role conn handed out so far.
func (e *Engine) ClientBinds() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Conn(nil), e.clientBinds...)
}

// ServerBinds returns every server-role conn handed out so far.
func (e *Engine) ServerBinds() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Conn(nil), e.serverBinds...)
}
