//go:build !linux

package platform

import (
	"github.com/bluetuith-org/gatt-host/api/config"
	"github.com/bluetuith-org/gatt-host/api/gatt"
	"github.com/bluetuith-org/gatt-host/engine/shim"
)

// NewEngine returns a platform-specific attribute-protocol engine.
func NewEngine(cfg config.Configuration) (gatt.Engine, PlatformInfo) {
	return shim.New(cfg), NewPlatformInfo(NativeEngineStack)
}
