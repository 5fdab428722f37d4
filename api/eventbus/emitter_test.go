package eventbus_test

import (
	"testing"
	"time"

	"github.com/bluetuith-org/gatt-host/api/eventbus"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishSubscribe verifies delivery through the default handler.
func TestPublishSubscribe(t *testing.T) {
	eventbus.RegisterEventHandler(eventbus.DefaultHandler())

	sub := eventbus.Subscribe(gatt.EventClientBound)
	defer sub.Unsubscribe()

	data := gatt.BindingEvent{Token: 1, Peer: 2}
	eventbus.Publish(gatt.EventClientBound, data)

	select {
	case got := <-sub.C:
		assert.Equal(t, data, got)

	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

// TestDisabledHandlerDropsEvents verifies that the nil handler swallows
// publishes and returns a closed subscription channel.
func TestDisabledHandlerDropsEvents(t *testing.T) {
	eventbus.DisableEvents()
	defer eventbus.RegisterEventHandler(eventbus.DefaultHandler())

	eventbus.Publish(gatt.EventServerBound, gatt.BindingEvent{})

	sub := eventbus.Subscribe(gatt.EventServerBound)
	_, open := <-sub.C
	require.False(t, open)
}
