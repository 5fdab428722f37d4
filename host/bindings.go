package host

import (
	"github.com/bluetuith-org/gatt-host/api/eventbus"
	"github.com/bluetuith-org/gatt-host/api/gatt"
)

// serverBinding holds one server-role endpoint and its engine-side
// protocol binding. The binding's own address is its table key.
type serverBinding struct {
	ep   gatt.Endpoint
	conn gatt.ServerConn
}

// clientBinding holds one client-role endpoint for a (token, peer) pair.
type clientBinding struct {
	token gatt.Token
	peer  gatt.PeerID

	ep   gatt.Endpoint
	conn gatt.ClientConn
}

func (b *serverBinding) close() {
	if b.conn != nil {
		b.conn.Close()
	}
	b.ep.Close()
}

func (b *clientBinding) close() {
	if b.conn != nil {
		b.conn.Close()
	}
	b.ep.Close()
}

// BindServer accepts a server-role endpoint and binds it to the engine.
// Server binds are unconditionally accepted. When the remote end of the
// endpoint closes, the binding evicts itself. Runs on the owning context.
func (h *Host) BindServer(ep gatt.Endpoint) {
	if h.closed.Load() {
		ep.Close()
		return
	}

	conn, err := h.engine.BindLocalServer(ep)
	if err != nil {
		ep.Close()
		return
	}

	b := &serverBinding{ep: ep, conn: conn}
	h.servers[b] = struct{}{}

	ep.OnDisconnect(func(error) {
		h.disp.Post(func() { h.evictServer(b) })
	})

	eventbus.Publish(gatt.EventServerBound, gatt.BindingEvent{})
}

// BindClient accepts a client-role endpoint for the given (token, peer)
// pair. At most one live binding exists per pair: if the pair is already
// occupied, the offered endpoint is closed and nothing else happens; the
// far end observes the closure. Distinct tokens may each bind the same
// peer. Runs on the owning context.
func (h *Host) BindClient(token gatt.Token, peer gatt.PeerID, ep gatt.Endpoint) {
	if h.closed.Load() {
		ep.Close()
		return
	}

	if _, bound := h.clients[token][peer]; bound {
		ep.Close()
		return
	}

	conn, err := h.engine.BindRemoteClient(peer, ep)
	if err != nil {
		ep.Close()
		return
	}

	b := &clientBinding{token: token, peer: peer, ep: ep, conn: conn}

	peers := h.clients[token]
	if peers == nil {
		peers = make(map[gatt.PeerID]*clientBinding)
		h.clients[token] = peers
	}
	peers[peer] = b

	ep.OnDisconnect(func(error) {
		h.disp.Post(func() { h.evictClient(b) })
	})

	eventbus.Publish(gatt.EventClientBound, gatt.BindingEvent{Token: token, Peer: peer})
}

// UnbindClient drops the client-role binding for (token, peer), closing
// its endpoint. Unbinding a pair that is not bound is a no-op. Runs on
// the owning context.
func (h *Host) UnbindClient(token gatt.Token, peer gatt.PeerID) {
	peers, ok := h.clients[token]
	if !ok {
		return
	}

	b, ok := peers[peer]
	if !ok {
		return
	}

	delete(peers, peer)
	if len(peers) == 0 {
		delete(h.clients, token)
	}

	b.close()

	eventbus.Publish(gatt.EventClientUnbound, gatt.BindingEvent{Token: token, Peer: peer})
}

// UnbindAll drops every client-role binding held under token. A token
// with no bindings is a no-op. Runs on the owning context.
func (h *Host) UnbindAll(token gatt.Token) {
	peers, ok := h.clients[token]
	if !ok {
		return
	}

	delete(h.clients, token)

	for peer, b := range peers {
		b.close()
		eventbus.Publish(gatt.EventClientUnbound, gatt.BindingEvent{Token: token, Peer: peer})
	}
}

// CloseBindings drops every server- and client-role binding, closing all
// endpoints. Idempotent. Runs on the owning context.
func (h *Host) CloseBindings() {
	for b := range h.servers {
		delete(h.servers, b)
		b.close()
	}

	for token, peers := range h.clients {
		delete(h.clients, token)
		for _, b := range peers {
			b.close()
		}
	}
}

// evictServer removes b after its remote end disconnected. A binding
// already removed by CloseBindings is left alone.
func (h *Host) evictServer(b *serverBinding) {
	if h.closed.Load() {
		return
	}

	if _, ok := h.servers[b]; !ok {
		return
	}

	delete(h.servers, b)
	b.close()

	eventbus.Publish(gatt.EventServerUnbound, gatt.BindingEvent{})
}

// evictClient removes b after its remote end disconnected. The table slot
// is compared against b itself: a slot that was explicitly unbound and
// rebound in the meantime holds a different binding and is left alone.
func (h *Host) evictClient(b *clientBinding) {
	if h.closed.Load() {
		return
	}

	peers, ok := h.clients[b.token]
	if !ok || peers[b.peer] != b {
		return
	}

	delete(peers, b.peer)
	if len(peers) == 0 {
		delete(h.clients, b.token)
	}

	b.close()

	eventbus.Publish(gatt.EventClientUnbound, gatt.BindingEvent{Token: b.token, Peer: b.peer})
}
