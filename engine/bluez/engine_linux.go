//go:build linux

// Package bluez implements the attribute-protocol engine interface on
// top of the BlueZ D-Bus API. Remote service discovery is derived from
// ObjectManager InterfacesAdded signals carrying GattService1 objects.
package bluez

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-host/api/config"
	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	bluezService    = "org.bluez"
	deviceIface     = "org.bluez.Device1"
	serviceIface    = "org.bluez.GattService1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
)

// Engine is a BlueZ-backed attribute-protocol engine.
type Engine struct {
	cfg config.Configuration

	bus   *dbus.Conn
	sigCh chan *dbus.Signal

	// Service object path to owning device path, built from observed
	// GattService1 objects. Handles are derived from insertion order.
	handles *atomic.Int64

	closed atomic.Bool

	watcherMu sync.Mutex
	watcher   gatt.RemoteServiceWatcher

	mu sync.Mutex
}

// New returns a BlueZ engine for the given configuration. Initialize
// must be called before any other method.
func New(cfg config.Configuration) *Engine {
	return &Engine{cfg: cfg, handles: &atomic.Int64{}}
}

// Initialize connects to the system bus and subscribes to object
// additions under the BlueZ object manager.
func (e *Engine) Initialize() error {
	bus, err := dbus.SystemBus()
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "system-bus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the system bus"),
		)
	}

	if err := bus.AddMatchSignal(
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		bus.Close()
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "match-signal"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot subscribe to object manager signals"),
		)
	}

	e.mu.Lock()
	e.bus = bus
	e.sigCh = make(chan *dbus.Signal, 16)
	e.mu.Unlock()

	bus.Signal(e.sigCh)
	go e.watchSignals(e.sigCh)

	return nil
}

// ShutDown stops signal delivery and closes the bus connection.
func (e *Engine) ShutDown() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errorkinds.ErrSessionNotExist
	}

	e.watcherMu.Lock()
	e.watcher = nil
	e.watcherMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.bus == nil {
		return nil
	}

	e.bus.RemoveSignal(e.sigCh)
	_ = e.bus.RemoveMatchSignal(
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	)

	return e.bus.Close()
}

// RegisterRemoteServiceWatcher stores the discovery notification target.
func (e *Engine) RegisterRemoteServiceWatcher(watcher gatt.RemoteServiceWatcher) {
	e.watcherMu.Lock()
	e.watcher = watcher
	e.watcherMu.Unlock()
}

// BindRemoteClient connects the peer's device object.
func (e *Engine) BindRemoteClient(peer gatt.PeerID, _ gatt.Endpoint) (gatt.ClientConn, error) {
	if e.closed.Load() {
		return nil, errorkinds.ErrSessionNotExist
	}

	return &deviceConn{engine: e, peer: peer}, nil
}

// BindLocalServer accepts a server-role binding. Local GATT services are
// registered with BlueZ out of band; the conn only tracks lifetime.
func (e *Engine) BindLocalServer(_ gatt.Endpoint) (gatt.ServerConn, error) {
	if e.closed.Load() {
		return nil, errorkinds.ErrSessionNotExist
	}

	return &deviceConn{engine: e}, nil
}

// deviceConn tracks one role binding's lifetime.
type deviceConn struct {
	engine *Engine
	peer   gatt.PeerID

	closed atomic.Bool
}

func (c *deviceConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return errorkinds.ErrEndpointClosed
	}

	return nil
}

func (e *Engine) watchSignals(ch chan *dbus.Signal) {
	for sig := range ch {
		if e.closed.Load() {
			return
		}
		if sig == nil || len(sig.Body) < 2 {
			continue
		}

		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		if ifaces == nil {
			continue
		}

		props, ok := ifaces[serviceIface]
		if !ok {
			continue
		}

		service, peer, ok := e.serviceFromProps(path, props)
		if !ok {
			continue
		}

		e.watcherMu.Lock()
		watcher := e.watcher
		e.watcherMu.Unlock()

		if watcher != nil {
			watcher(peer, service)
		}
	}
}

func (e *Engine) serviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) (gatt.RemoteService, gatt.PeerID, bool) {
	var service gatt.RemoteService

	devicePath, _ := props["Device"].Value().(dbus.ObjectPath)
	if devicePath == "" {
		// Fall back to the parent of the service object path.
		if i := strings.LastIndex(string(path), "/service"); i > 0 {
			devicePath = path[:i]
		}
	}

	peer, ok := peerFromDevicePath(devicePath)
	if !ok {
		return service, 0, false
	}

	uuidStr, _ := props["UUID"].Value().(string)
	serviceType, err := uuid.Parse(uuidStr)
	if err != nil {
		return service, 0, false
	}

	primary, _ := props["Primary"].Value().(bool)

	service = gatt.RemoteService{
		Handle:  uint64(e.handles.Add(1)),
		Type:    serviceType,
		Primary: primary,
	}

	return service, peer, true
}

// peerFromDevicePath derives a peer identifier from the device address
// embedded in a BlueZ device object path
// (".../dev_XX_XX_XX_XX_XX_XX").
func peerFromDevicePath(path dbus.ObjectPath) (gatt.PeerID, bool) {
	s := string(path)

	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return 0, false
	}

	octets := strings.Split(s[i+len("/dev_"):], "_")
	if len(octets) != 6 {
		return 0, false
	}

	var peer uint64
	for _, octet := range octets {
		b, err := strconv.ParseUint(octet, 16, 8)
		if err != nil {
			return 0, false
		}
		peer = peer<<8 | b
	}

	return gatt.PeerID(peer), true
}
