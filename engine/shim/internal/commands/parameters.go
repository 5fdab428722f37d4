package commands

type Argument string

const (
	SocketArgument  Argument = "--socket-path"
	PeerArgument    Argument = "--peer"
	ChannelArgument Argument = "--channel-id"
	ServiceArgument Argument = "--uuid"
	StateArgument   Argument = "--state"
)

func (a Argument) String() string {
	return string(a)
}

func StateArgumentValue(enable bool) string {
	if !enable {
		return "off"
	}

	return "on"
}
