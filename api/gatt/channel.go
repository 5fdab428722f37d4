package gatt

import (
	"sync"

	"github.com/bluetuith-org/gatt-host/api/errorkinds"
)

// Endpoint is one end of a transferable, connection-oriented channel.
// Ownership of an endpoint is transferred into whichever component it is
// handed to; the holder closes it when done, and the far end observes
// the closure.
type Endpoint interface {
	// Close closes this end of the channel. The remote end observes a
	// disconnect. Closing an already-closed endpoint returns
	// errorkinds.ErrEndpointClosed.
	Close() error

	// OnDisconnect registers fn to be invoked exactly once when the
	// remote end closes or fails. If the remote end is already gone,
	// fn is invoked immediately on the calling goroutine. A later
	// registration replaces an earlier one that has not yet fired.
	OnDisconnect(fn func(reason error))
}

// Channel is an in-process Endpoint linked to a peer Channel.
// Closing one end delivers the other end's disconnect notification.
type Channel struct {
	mu      sync.Mutex
	peer    *Channel
	closed  bool
	reason  error
	handler func(error)
}

// NewChannel returns both ends of a new linked channel pair.
func NewChannel() (*Channel, *Channel) {
	a := &Channel{}
	b := &Channel{}
	a.peer, b.peer = b, a

	return a, b
}

// Close closes this end of the channel and notifies the peer end.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errorkinds.ErrEndpointClosed
	}

	c.closed = true
	c.handler = nil
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.disconnect(errorkinds.ErrRemoteClosed)
	}

	return nil
}

// OnDisconnect registers the disconnect handler for this end.
func (c *Channel) OnDisconnect(fn func(reason error)) {
	c.mu.Lock()
	if c.closed && c.reason != nil {
		reason := c.reason
		c.mu.Unlock()

		fn(reason)
		return
	}

	c.handler = fn
	c.mu.Unlock()
}

// Closed reports whether this end has been closed, locally or by the
// remote end.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Channel) disconnect(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.reason = reason
	handler := c.handler
	c.handler = nil
	c.mu.Unlock()

	if handler != nil {
		handler(reason)
	}
}
