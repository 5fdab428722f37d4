package eventbus

// EventID describes an identifier for one event stream.
type EventID interface {
	// Value returns the numeric value of the event ID.
	Value() uint

	// String returns the name of the event ID.
	String() string
}

// SubscriberID represents one subscription to an event stream.
// Events are received on C until Unsubscribe is called.
type SubscriberID struct {
	C <-chan any

	active bool
	unsub  func()
}

// Unsubscribe cancels the subscription. It is safe to call more than once.
func (s *SubscriberID) Unsubscribe() {
	if !s.active {
		return
	}

	s.active = false
	if s.unsub != nil {
		s.unsub()
	}
}
