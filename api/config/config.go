package config

import "time"

const (
	// The default timeout duration for engine command round-trips.
	DefaultCommandTimeout = 10 * time.Second
)

// Configuration describes a general configuration.
type Configuration struct {
	// EnginePath holds the path to the native attribute-protocol engine
	// executable. Specific to the shim-backed engine on Windows, MacOS
	// and FreeBSD.
	EnginePath string

	// SocketPath holds the unix socket path used to talk to the engine.
	// When empty, a temporary socket path is generated.
	SocketPath string

	// CommandTimeout holds the timeout for engine command round-trips.
	CommandTimeout time.Duration
}

// New returns a new configuration with the default command timeout.
func New() Configuration {
	return Configuration{
		CommandTimeout: DefaultCommandTimeout,
	}
}
