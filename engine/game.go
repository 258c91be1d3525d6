package engine

import (
	"github.com/spaghettifunk/vortex/engine/viewer"
)

// Game is the application's contract with the engine: configuration plus the
// callbacks the frame loop invokes. BuildGraphs runs once during
// initialization and returns the command graphs the viewer partitions into
// submission tasks.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnBuildGraphs     BuildGraphs
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type BuildGraphs func(device viewer.Device, graphicsFamily, presentFamily int, window viewer.Window) ([]*viewer.CommandGraph, error)
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
