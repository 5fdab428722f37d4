package gatt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPeerIDString verifies the canonical zero-padded hexadecimal form.
func TestPeerIDString(t *testing.T) {
	assert.Equal(t, "0000000000000000", PeerID(0).String())
	assert.Equal(t, "00000000000000ff", PeerID(0xFF).String())
	assert.Equal(t, "ffffffffffffffff", PeerID(^uint64(0)).String())
}

// TestEventIDNames verifies the event stream names.
func TestEventIDNames(t *testing.T) {
	assert.Equal(t, "service_discovered", EventServiceDiscovered.String())
	assert.Equal(t, "client_bound", EventClientBound.String())
	assert.Equal(t, "unknown_event", EventID(255).String())
	assert.Equal(t, uint(EventClientUnbound), EventClientUnbound.Value())
}
