package commands

import (
	"strconv"
	"time"

	"github.com/bluetuith-org/gatt-host/api/errorkinds"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/bluetuith-org/gatt-host/engine/shim/internal/serde"
)

// Session commands.
func StartRpcServer(socketPath string) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "rpc start-server"}).WithArgument(SocketArgument, socketPath)
}
func StopRpcServer() *Command[NoResult] {
	return &Command[NoResult]{cmd: "rpc stop-server"}
}
func GetEngineDescription() *Command[EngineDescription] {
	return &Command[EngineDescription]{cmd: "rpc engine-info"}
}

// Role commands.
func AttachClientRole(peer gatt.PeerID, channel int64) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "gatt attach-client"}).WithArguments(func(am ArgumentMap) {
		am[PeerArgument] = peer.String()
		am[ChannelArgument] = strconv.FormatInt(channel, 10)
	})
}
func AttachServerRole(channel int64) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "gatt attach-server"}).WithArgument(ChannelArgument, strconv.FormatInt(channel, 10))
}
func DetachRole(channel int64) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "gatt detach"}).WithArgument(ChannelArgument, strconv.FormatInt(channel, 10))
}

// Discovery commands.
func SetServiceWatchState(enable bool) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "gatt watch-services"}).WithArgument(StateArgument, StateArgumentValue(enable))
}
func ListRemoteServices(peer gatt.PeerID) *Command[[]gatt.RemoteService] {
	return (&Command[[]gatt.RemoteService]{cmd: "gatt list-services"}).WithArgument(PeerArgument, peer.String())
}

func (c *Command[T]) ExecuteWith(fn ExecuteFunc, timeoutSeconds ...int) (T, error) {
	var result T

	var timeout = time.Duration(10)
	if timeoutSeconds != nil {
		timeout = time.Duration(timeoutSeconds[0])
	}

	responseChan, commandErr := fn(c.Slice())
	if commandErr != nil {
		return result, commandErr
	}

	commandErr = errorkinds.ErrSessionStop

	select {
	case response, ok := <-responseChan:
		if !ok {
			break
		}

		if response.Status == "error" {
			return result, response.Error
		}

		if response.Status == "ok" {
			if len(response.Data) > 0 {
				reply := make(map[string]T, 1)
				if err := serde.UnmarshalJson(response.Data, &reply); err != nil {
					return result, err
				}

				for _, mv := range reply {
					result = mv
				}
			}

			commandErr = nil
		}

	case <-time.After(timeout * time.Second):
		commandErr = errorkinds.ErrMethodTimeout
	}

	return result, commandErr
}
