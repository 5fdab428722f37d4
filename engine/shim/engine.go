// Package shim implements the attribute-protocol engine interface on top
// of a native engine process, spoken to over a framed command protocol on
// a unix socket.
package shim

import (
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-host/api/config"
	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/bluetuith-org/gatt-host/engine/shim/internal/commands"
	"github.com/bluetuith-org/gatt-host/engine/shim/internal/serde"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	EngineInitErrTimeout = 1 * time.Second

	serviceFoundEventID = 1
)

// Engine bridges the session host to a native attribute-protocol engine
// process.
type Engine struct {
	cfg config.Configuration

	description commands.EngineDescription

	conn net.Conn

	listenerErrChan chan error
	engineClosed    atomic.Bool

	cancel context.CancelFunc

	id         *xsync.Counter
	channelId  *xsync.Counter
	requestMap *xsync.MapOf[int64, chan commands.CommandResponse]

	watcherMu sync.Mutex
	watcher   gatt.RemoteServiceWatcher

	sync.Mutex
}

// serviceFoundEvent is the payload of a service discovery event frame.
type serviceFoundEvent struct {
	Peer    gatt.PeerID        `json:"peer"`
	Service gatt.RemoteService `json:"service"`
}

// roleConn is one attached GATT role on the engine, identified by its
// channel id.
type roleConn struct {
	engine  *Engine
	channel int64
}

// New returns an engine bridge for the given configuration. Initialize
// must be called before any other method.
func New(cfg config.Configuration) *Engine {
	return &Engine{cfg: cfg}
}

// Initialize starts the native engine process, connects to its socket
// and performs the version handshake.
func (e *Engine) Initialize() error {
	var initialized bool
	defer func() {
		if !initialized {
			e.ShutDown()
		}
	}()

	if e.cfg.SocketPath == "" {
		t, err := os.CreateTemp("", "gatt_engine_sock_")
		if err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "create-socket"),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot create socket file"),
			)
		}
		t.Close()

		e.cfg.SocketPath = t.Name()
	}

	ctx := e.reset(false)

	engine := exec.CommandContext(
		ctx, e.cfg.EnginePath,
		commands.StartRpcServer(e.cfg.SocketPath).Slice()...,
	)
	engine.Stdout = os.Stdout
	engine.Stderr = os.Stderr
	if err := engine.Start(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-engine"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start RPC session with the engine"),
		)
	}

	if err := e.waitForInitErrors(ctx, engine); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "exec-engine"),
			ftag.With(ftag.Internal),
			fmsg.With("Engine process exited with errors"),
		)
	}

	if err := e.startListener(ctx, e.cfg.SocketPath); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "listener-engine"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start listener on provided socket"),
		)
	}

	description, err := commands.GetEngineDescription().ExecuteWith(e.executor)
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "engine-info"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot get the engine description"),
		)
	}
	e.description = description

	if _, err := commands.SetServiceWatchState(true).ExecuteWith(e.executor); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "watch-services"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot enable service discovery notifications"),
		)
	}

	initialized = true

	return nil
}

// ShutDown stops the engine session. After it returns, the registered
// remote service watcher is never invoked again.
func (e *Engine) ShutDown() error {
	if e.engineClosed.Load() {
		return errorkinds.ErrSessionNotExist
	}

	var err error
	if e.conn != nil {
		_, err = commands.StopRpcServer().ExecuteWith(e.executor)
	}
	e.reset(true)

	e.watcherMu.Lock()
	e.watcher = nil
	e.watcherMu.Unlock()

	return err
}

// RegisterRemoteServiceWatcher stores the discovery notification target.
func (e *Engine) RegisterRemoteServiceWatcher(watcher gatt.RemoteServiceWatcher) {
	e.watcherMu.Lock()
	e.watcher = watcher
	e.watcherMu.Unlock()
}

// BindRemoteClient attaches a client role for peer on a fresh channel id.
func (e *Engine) BindRemoteClient(peer gatt.PeerID, _ gatt.Endpoint) (gatt.ClientConn, error) {
	e.channelId.Inc()
	channel := e.channelId.Value()

	if _, err := commands.AttachClientRole(peer, channel).ExecuteWith(e.executor); err != nil {
		return nil, err
	}

	return &roleConn{engine: e, channel: channel}, nil
}

// BindLocalServer attaches a server role on a fresh channel id.
func (e *Engine) BindLocalServer(_ gatt.Endpoint) (gatt.ServerConn, error) {
	e.channelId.Inc()
	channel := e.channelId.Value()

	if _, err := commands.AttachServerRole(channel).ExecuteWith(e.executor); err != nil {
		return nil, err
	}

	return &roleConn{engine: e, channel: channel}, nil
}

// ListRemoteServices returns the services known for peer.
func (e *Engine) ListRemoteServices(peer gatt.PeerID) ([]gatt.RemoteService, error) {
	return commands.ListRemoteServices(peer).ExecuteWith(e.executor)
}

// Description returns the engine identity from the version handshake.
func (e *Engine) Description() commands.EngineDescription {
	return e.description
}

// Close detaches the role from the engine.
func (r *roleConn) Close() error {
	_, err := commands.DetachRole(r.channel).ExecuteWith(r.engine.executor)
	return err
}

func (e *Engine) waitForInitErrors(ctx context.Context, cmd *exec.Cmd) error {
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() != nil {
			e.ShutDown()
		}
	}()

	select {
	case err := <-e.listenerErrChan:
		return err

	case <-ctx.Done():
		return errorkinds.ErrSessionNotExist

	case <-time.NewTimer(EngineInitErrTimeout).C:
	}

	return nil
}

func (e *Engine) startListener(ctx context.Context, socketpath string) error {
	socket, err := net.Dial("unix", socketpath)
	if err != nil {
		return err
	}

	e.conn = socket
	go e.listenForReplies(ctx)

	return nil
}

func (e *Engine) listenForReplies(ctx context.Context) {
	sendResponse := func(c chan commands.CommandResponse, r commands.CommandResponse) {
		select {
		case c <- r:
			close(c)
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		default:
		}

		if e.engineClosed.Load() {
			return
		}

		replyHeader := commands.RawReplyHeaderBuffer{}
		headerBytes, err := e.conn.Read(replyHeader[:])
		if err != nil {
			e.handleListenerError(err)
			continue
		}
		if headerBytes != len(replyHeader) {
			continue
		}

		header, err := commands.UnpackReplyHeader(replyHeader)
		if err != nil {
			e.handleListenerError(err)
			continue
		}

		buf := make([]byte, header.ContentSize)
		_, err = io.ReadFull(e.conn, buf)
		if err != nil {
			e.handleListenerError(err)
			continue
		}

		if header.EventID > 0 {
			e.handleListenerEvent(header.EventID, buf)
			continue
		}

		var response commands.CommandResponse
		if err := serde.UnmarshalJson(buf, &response); err != nil {
			e.handleListenerError(err)
			continue
		}

		replyChan, ok := chan commands.CommandResponse(nil), false
		if header.IsOperationComplete {
			replyChan, ok = e.requestMap.LoadAndDelete(header.RequestId)
		} else {
			replyChan, ok = e.requestMap.Load(header.RequestId)
		}

		if ok {
			sendResponse(replyChan, response)
		}
	}
}

// handleListenerEvent decodes an event frame and relays service
// discovery to the registered watcher. The watcher is copied out under
// the lock and invoked after release.
func (e *Engine) handleListenerEvent(eventId byte, buf []byte) {
	if eventId != serviceFoundEventID {
		return
	}

	var event serviceFoundEvent
	if err := serde.UnmarshalJson(buf, &event); err != nil {
		e.handleListenerError(err)
		return
	}

	e.watcherMu.Lock()
	watcher := e.watcher
	e.watcherMu.Unlock()

	if watcher != nil {
		watcher(event.Peer, event.Service)
	}
}

func (e *Engine) handleListenerError(err error) {
	select {
	case e.listenerErrChan <- err:
	default:
	}
}

func (e *Engine) executor(params []string) (chan commands.CommandResponse, error) {
	if e.engineClosed.Load() {
		return nil, errorkinds.ErrSessionNotExist
	}

	e.id.Inc()
	replyChan := make(chan commands.CommandResponse, 1)
	e.requestMap.Store(e.id.Value(), replyChan)

	command := map[string]any{
		"command":    params,
		"request_id": e.id.Value(),
	}

	commandBytes, err := serde.MarshalJson(command)
	if err != nil {
		return nil, err
	}

	if _, err = e.conn.Write(commandBytes); err != nil {
		return nil, err
	}

	return replyChan, nil
}

func (e *Engine) reset(isClosed bool) context.Context {
	e.Lock()
	defer e.Unlock()

	e.engineClosed.Store(isClosed)
	if isClosed {
		if e.cancel != nil {
			e.cancel()
		}

		if e.conn != nil {
			e.conn.Close()
		}

		return context.Background()
	}

	e.id = xsync.NewCounter()
	e.channelId = xsync.NewCounter()
	e.requestMap = xsync.NewMapOf[int64, chan commands.CommandResponse]()

	e.listenerErrChan = make(chan error, 10)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	return ctx
}
