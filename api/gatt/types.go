package gatt

import (
	"strconv"

	"github.com/google/uuid"
)

// Token identifies one binding authority for client-role sessions,
// typically one higher-level client connection. Tokens are chosen by the
// caller and are only compared for equality; the host does not validate
// their provenance.
type Token uint64

// PeerID identifies one remote device.
type PeerID uint64

// String returns the peer identifier in its canonical hexadecimal form.
func (p PeerID) String() string {
	const hexDigits = 16

	s := strconv.FormatUint(uint64(p), 16)
	for len(s) < hexDigits {
		s = "0" + s
	}

	return s
}

// RemoteService describes one GATT service discovered on a remote peer.
type RemoteService struct {
	// Handle is the engine-assigned identifier of the service.
	Handle uint64 `json:"handle"`

	// Type is the service UUID.
	Type uuid.UUID `json:"uuid,omitempty"`

	// Primary reports whether this is a primary service.
	Primary bool `json:"primary,omitempty"`
}

// RemoteServiceWatcher is invoked when a GATT service is discovered on a
// connected peer. It may be invoked from an arbitrary goroutine owned by
// the attribute-protocol engine.
type RemoteServiceWatcher func(peer PeerID, service RemoteService)
