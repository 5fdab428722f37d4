package gatt

// ClientConn is an opaque client-role protocol binding produced by an
// engine for one (peer, endpoint) pair. Closing it detaches the role from
// the engine; any protocol traffic it carries is internal to the engine.
type ClientConn interface {
	Close() error
}

// ServerConn is an opaque server-role protocol binding produced by an
// engine for one endpoint.
type ServerConn interface {
	Close() error
}

// Engine describes the attribute-protocol engine underneath a session
// host. An engine owns the per-link protocol connections and reports
// remote service discovery through a single registered watcher.
type Engine interface {
	// Initialize prepares the engine for use. It must be called exactly
	// once, before any other method.
	Initialize() error

	// ShutDown stops the engine. After ShutDown returns, the registered
	// remote service watcher is never invoked again.
	ShutDown() error

	// RegisterRemoteServiceWatcher registers the single discovery
	// notification target. The engine invokes it zero or more times,
	// from an unspecified goroutine, until ShutDown is observed.
	// A nil watcher disables delivery.
	RegisterRemoteServiceWatcher(watcher RemoteServiceWatcher)

	// BindRemoteClient attaches a client-role protocol binding for the
	// given peer to the supplied endpoint.
	BindRemoteClient(peer PeerID, ep Endpoint) (ClientConn, error)

	// BindLocalServer attaches a server-role protocol binding to the
	// supplied endpoint.
	BindLocalServer(ep Endpoint) (ServerConn, error)
}
