package host_test

import (
	"sync"
	"testing"

	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/bluetuith-org/gatt-host/engine/enginetest"
	"github.com/bluetuith-org/gatt-host/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes fn on the host's owning context and waits for it.
func run(t *testing.T, h *host.Host, fn func()) {
	t.Helper()
	require.True(t, h.DispatchWait(fn), "owning context rejected the task")
}

// flush waits for all previously posted tasks to complete.
func flush(t *testing.T, h *host.Host) {
	t.Helper()
	require.True(t, h.DispatchWait(func() {}))
}

func newHost(t *testing.T) (*host.Host, *enginetest.Engine) {
	t.Helper()

	engine := enginetest.New()
	require.NoError(t, engine.Initialize())

	return host.NewWithEngine(engine), engine
}

// bindClient hands the "near" end of a fresh channel to the host and
// returns the caller-held far end.
func bindClient(t *testing.T, h *host.Host, token gatt.Token, peer gatt.PeerID) *gatt.Channel {
	t.Helper()

	near, far := gatt.NewChannel()
	run(t, h, func() { h.BindClient(token, peer, near) })

	return far
}

// TestBindClientDuplicatePair verifies that a second bind for an
// occupied (token, peer) pair closes the offered endpoint and leaves the
// existing binding untouched.
func TestBindClientDuplicatePair(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 1, 1)

	assert.False(t, a.Closed(), "first binding should stay open")
	assert.True(t, b.Closed(), "second binding should be rejected by closure")
}

// TestBindClientTokenIsolation verifies that two tokens may each hold a
// client binding for the same peer.
func TestBindClientTokenIsolation(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 2, 1)

	assert.False(t, a.Closed())
	assert.False(t, b.Closed())
}

// TestBindClientPeerIsolation verifies that one token may bind multiple
// peers independently.
func TestBindClientPeerIsolation(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 1, 2)

	assert.False(t, a.Closed())
	assert.False(t, b.Closed())
}

// TestUnbindClientSinglePeer verifies that unbinding one (token, peer)
// pair closes only that binding, and that a repeated unbind is a no-op.
func TestUnbindClientSinglePeer(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 1, 2)
	c := bindClient(t, h, 2, 1)

	run(t, h, func() { h.UnbindClient(1, 1) })

	assert.True(t, a.Closed())
	assert.False(t, b.Closed())
	assert.False(t, c.Closed())

	run(t, h, func() { h.UnbindClient(1, 1) })

	assert.False(t, b.Closed())
	assert.False(t, c.Closed())
}

// TestUnbindAllForToken verifies that unbinding a whole token closes
// every binding under it and nothing else.
func TestUnbindAllForToken(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 1, 2)
	c := bindClient(t, h, 2, 1)

	run(t, h, func() { h.UnbindAll(1) })

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.False(t, c.Closed())

	run(t, h, func() { h.UnbindAll(1) })
	assert.False(t, c.Closed())
}

// TestRebindAfterRemoteClose verifies that a binding whose remote end
// closed organically is really evicted, so rebinding the same
// (token, peer) pair succeeds.
func TestRebindAfterRemoteClose(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	require.NoError(t, a.Close())

	// The disconnect handler posts the eviction onto the owning
	// context; wait for it to run.
	flush(t, h)

	a2 := bindClient(t, h, 1, 1)
	assert.False(t, a2.Closed(), "rebinding an evicted pair should be accepted")
}

// TestStaleDisconnectAfterRebind verifies that a pending disconnect
// eviction for an old binding cannot evict the binding that replaced it.
func TestStaleDisconnectAfterRebind(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)

	near2, a2 := gatt.NewChannel()
	run(t, h, func() {
		// Closing the far end from the owning context queues the
		// eviction behind this task. Unbind and rebind the pair
		// before that stale eviction gets to run.
		a.Close()
		h.UnbindClient(1, 1)
		h.BindClient(1, 1, near2)
	})
	flush(t, h)

	assert.False(t, a2.Closed(), "stale eviction must not close the replacement binding")
}

// TestBindServerEviction verifies that server bindings are accepted
// unconditionally and evict themselves when their remote end closes.
func TestBindServerEviction(t *testing.T) {
	h, engine := newHost(t)

	near, far := gatt.NewChannel()
	run(t, h, func() { h.BindServer(near) })

	conns := engine.ServerBinds()
	require.Len(t, conns, 1)
	assert.False(t, conns[0].Closed())

	require.NoError(t, far.Close())
	flush(t, h)

	assert.True(t, conns[0].Closed(), "eviction should close the engine-side conn")
}

// TestCloseBindings verifies that CloseBindings drops every binding of
// both roles and is idempotent.
func TestCloseBindings(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 2, 2)

	near, far := gatt.NewChannel()
	run(t, h, func() { h.BindServer(near) })

	run(t, h, func() { h.CloseBindings() })

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.True(t, far.Closed())

	run(t, h, func() { h.CloseBindings() })
}

// TestWatcherDelivery verifies that a registered watcher observes
// exactly one invocation per discovery event, with the expected pair.
func TestWatcherDelivery(t *testing.T) {
	h, engine := newHost(t)

	var mu sync.Mutex
	var peers []gatt.PeerID
	var services []gatt.RemoteService

	h.SetRemoteServiceWatcher(func(peer gatt.PeerID, service gatt.RemoteService) {
		mu.Lock()
		defer mu.Unlock()
		peers = append(peers, peer)
		services = append(services, service)
	})

	service := gatt.RemoteService{Handle: 7, Primary: true}
	engine.AddPeerService(3, service)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, peers, 1)
	assert.Equal(t, gatt.PeerID(3), peers[0])
	assert.Equal(t, service, services[0])
}

// TestWatcherReentrantReplace verifies that a watcher may replace itself
// from within its own invocation without deadlocking, and that the
// replacement takes effect for the next event.
func TestWatcherReentrantReplace(t *testing.T) {
	h, engine := newHost(t)

	var calls int
	h.SetRemoteServiceWatcher(func(gatt.PeerID, gatt.RemoteService) {
		calls++
		h.SetRemoteServiceWatcher(nil)
	})

	engine.AddPeerService(1, gatt.RemoteService{Handle: 1})
	engine.AddPeerService(1, gatt.RemoteService{Handle: 2})

	assert.Equal(t, 1, calls, "replaced watcher should not fire again")
}

// TestWatcherSwap verifies that replacing the watcher reroutes
// subsequent events to the new callback only.
func TestWatcherSwap(t *testing.T) {
	h, engine := newHost(t)

	var first, second int
	h.SetRemoteServiceWatcher(func(gatt.PeerID, gatt.RemoteService) { first++ })
	engine.AddPeerService(1, gatt.RemoteService{Handle: 1})

	h.SetRemoteServiceWatcher(func(gatt.PeerID, gatt.RemoteService) { second++ })
	engine.AddPeerService(1, gatt.RemoteService{Handle: 2})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

// TestShutdown verifies the teardown sequence: the engine is stopped,
// all bindings drop, late discovery events are ignored and a second
// Shutdown reports the host closed.
func TestShutdown(t *testing.T) {
	h, engine := newHost(t)

	a := bindClient(t, h, 1, 1)

	var calls int
	h.SetRemoteServiceWatcher(func(gatt.PeerID, gatt.RemoteService) { calls++ })

	var err error
	run(t, h, func() { err = h.Shutdown() })
	require.NoError(t, err)

	assert.Equal(t, 1, engine.Shutdowns())
	assert.True(t, a.Closed())

	// The engine double still delivers after ShutDown; the relay must
	// ignore it.
	engine.AddPeerService(1, gatt.RemoteService{Handle: 9})
	assert.Zero(t, calls)

	assert.ErrorIs(t, h.Shutdown(), errorkinds.ErrHostClosed)
}

// TestShutdownDropsLateTasks verifies that work posted after teardown is
// dropped rather than executed against a dead host.
func TestShutdownDropsLateTasks(t *testing.T) {
	h, _ := newHost(t)

	run(t, h, func() { h.Shutdown() })

	assert.False(t, h.Dispatch(func() {}))

	// Binding endpoints whose disconnects fire after teardown must not
	// crash; their evictions are dropped with the executor.
	near, _ := gatt.NewChannel()
	assert.False(t, h.Dispatch(func() { h.BindClient(1, 1, near) }))
}

// TestSessionScenario walks the full multiplexing sequence across two
// tokens and two peers.
func TestSessionScenario(t *testing.T) {
	h, _ := newHost(t)

	a := bindClient(t, h, 1, 1)
	b := bindClient(t, h, 1, 2)
	c := bindClient(t, h, 2, 1)

	assert.False(t, a.Closed())
	assert.False(t, b.Closed())
	assert.False(t, c.Closed())

	run(t, h, func() { h.UnbindClient(1, 1) })
	assert.True(t, a.Closed())
	assert.False(t, b.Closed())
	assert.False(t, c.Closed())

	run(t, h, func() { h.UnbindClient(1, 2) })
	assert.True(t, b.Closed())
	assert.False(t, c.Closed())
}
