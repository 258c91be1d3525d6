package engine

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/platform"
	"github.com/spaghettifunk/vortex/engine/renderer/vulkan"
	"github.com/spaghettifunk/vortex/engine/viewer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game

	platform *platform.Platform
	context  *vulkan.VulkanContext
	window   *vulkan.VulkanWindow
	viewer   *viewer.Viewer
	pager    *viewer.DatabasePager

	clock    *core.Clock
	lastTime float64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		platform:     p,
		clock:        core.NewClock(),
	}, nil
}

// Initialize brings up the platform, the Vulkan instance, the window with
// its device and swapchain, then builds the game's command graphs and runs
// the one time compile step before arming the recording threads.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	config := e.gameInstance.ApplicationConfig

	core.SetLogLevel(config.LogLevel)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	if err := e.platform.Startup(); err != nil {
		return err
	}

	platformWindow, err := e.platform.NewWindow(config.Name,
		config.StartPosX, config.StartPosY,
		config.StartWidth, config.StartHeight)
	if err != nil {
		return err
	}

	ctx, err := vulkan.NewVulkanContext(config.Name, platformWindow.RequiredInstanceExtensions())
	if err != nil {
		return err
	}
	e.context = ctx

	window, err := vulkan.NewVulkanWindow(ctx, platformWindow, nil)
	if err != nil {
		return err
	}
	e.window = window

	e.viewer = viewer.NewViewer()
	e.viewer.AddWindow(window)
	e.viewer.AddEventHandler(e.onEvent)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	if e.gameInstance.FnBuildGraphs == nil {
		return fmt.Errorf("game has no graph builder")
	}

	device := window.Device()
	graphicsFamily, err := device.QueueFamily(vk.QueueGraphicsBit)
	if err != nil {
		return err
	}
	presentFamily := int(device.(*vulkan.VulkanDevice).PresentQueueIndex)

	graphs, err := e.gameInstance.FnBuildGraphs(device, graphicsFamily, presentFamily, window)
	if err != nil {
		return err
	}

	if config.PagerWorkers > 0 {
		pager, err := viewer.NewDatabasePager(config.AssetRoot, config.PagerWorkers)
		if err != nil {
			return err
		}
		e.pager = pager
	}

	if err := e.viewer.AssignRecordAndSubmitTaskAndPresentations(graphs, e.pager); err != nil {
		return err
	}
	if err := e.viewer.Compile(); err != nil {
		return err
	}
	e.viewer.SetupThreading()

	e.currentStage = EngineStageInitialized
	return nil
}

// Viewer exposes the frame orchestrator, mainly for the game's own wiring.
func (e *Engine) Viewer() *viewer.Viewer {
	return e.viewer
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.ElapsedSeconds()

	for e.viewer.Active() {
		e.platform.PumpMessages()

		if !e.viewer.AdvanceToNextFrame() {
			break
		}

		e.clock.Update()
		frameStart := e.clock.ElapsedSeconds()
		deltaTime := frameStart - e.lastTime

		e.viewer.HandleEvents()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(deltaTime); err != nil {
				core.LogError("game update failed: %s", err.Error())
				break
			}
		}

		e.viewer.Update()

		if err := e.viewer.RecordAndSubmit(); err != nil {
			return err
		}
		e.viewer.Present()

		e.clock.Update()
		core.MetricsUpdate(e.clock.ElapsedSeconds() - frameStart)
		e.lastTime = e.clock.ElapsedSeconds()
	}

	return e.Shutdown()
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogWarn("game shutdown failed: %s", err.Error())
		}
	}

	if e.viewer != nil {
		e.viewer.Close()
	}
	if e.pager != nil {
		if err := e.pager.Shutdown(); err != nil {
			core.LogWarn("pager shutdown failed: %s", err.Error())
		}
	}
	if e.window != nil {
		e.window.Destroy()
	}
	if e.context != nil {
		e.context.Destroy()
	}
	return e.platform.Shutdown()
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("quit requested, shutting down")
		e.viewer.Close()
	case core.EVENT_CODE_RESIZED:
		event := context.Data.(*core.SystemEvent)
		e.window.NotifyResize()
		if e.gameInstance.FnOnResize != nil {
			if err := e.gameInstance.FnOnResize(event.WindowWidth, event.WindowHeight); err != nil {
				core.LogWarn("resize handler failed: %s", err.Error())
			}
		}
	}
}
