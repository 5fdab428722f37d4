package gatt

// EventID identifies one session event stream on the event bus.
type EventID uint

const (
	EventNone EventID = iota
	EventServiceDiscovered
	EventClientBound
	EventClientUnbound
	EventServerBound
	EventServerUnbound
	EventSessionStopped
)

// Value returns the numeric value of the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// String returns the name of the event ID.
func (e EventID) String() string {
	switch e {
	case EventServiceDiscovered:
		return "service_discovered"
	case EventClientBound:
		return "client_bound"
	case EventClientUnbound:
		return "client_unbound"
	case EventServerBound:
		return "server_bound"
	case EventServerUnbound:
		return "server_unbound"
	case EventSessionStopped:
		return "session_stopped"
	}

	return "unknown_event"
}

// ServiceEvent is published on EventServiceDiscovered.
type ServiceEvent struct {
	Peer    PeerID        `json:"peer"`
	Service RemoteService `json:"service"`
}

// BindingEvent is published on the client/server bind and unbind streams.
// Token is zero for server-role events.
type BindingEvent struct {
	Token Token  `json:"token,omitempty"`
	Peer  PeerID `json:"peer,omitempty"`
}
