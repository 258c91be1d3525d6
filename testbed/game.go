package testbed

import (
	"image"
	"image/color"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/renderer/vulkan"
	"github.com/spaghettifunk/vortex/engine/viewer"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	checker *viewer.ImageResource
	frames  uint64
}

func NewTestGame() (*TestGame, error) {
	state := &gameState{}

	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:    100,
				StartPosY:    100,
				StartWidth:   1280,
				StartHeight:  720,
				Name:         "Vortex Testbed",
				LogLevel:     "debug",
				PagerWorkers: 2,
			},
			State: state,
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnBuildGraphs = tg.BuildGraphs
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	state.width = g.ApplicationConfig.StartWidth
	state.height = g.ApplicationConfig.StartHeight
	return nil
}

// BuildGraphs creates a single presenting command graph carrying a test
// texture, so the compile step has descriptor statistics and an upload to
// exercise.
func (g *TestGame) BuildGraphs(device viewer.Device, graphicsFamily, presentFamily int, window viewer.Window) ([]*viewer.CommandGraph, error) {
	state := g.State.(*gameState)

	state.checker = &viewer.ImageResource{
		Source:        checkerboard(256),
		Width:         256,
		Height:        256,
		Depth:         1,
		SamplerMaxLod: 16,
		Binding:       0,
		Slot:          0,
		Upload:        uploadTexture,
	}

	pool, err := device.NewCommandPool(graphicsFamily)
	if err != nil {
		return nil, err
	}
	commandPool := pool.(*vulkan.VulkanCommandPool)

	graph := viewer.NewCommandGraph(device, graphicsFamily, presentFamily, window, func(out *[]viewer.CommandBuffer, frame core.FrameStamp, pager *viewer.DatabasePager) error {
		cb, err := vulkan.NewVulkanCommandBuffer(commandPool, true)
		if err != nil {
			return err
		}
		if err := cb.Begin(true, false, false); err != nil {
			return err
		}
		// TODO: record the scene's draw commands once geometry loading lands.
		if err := cb.End(); err != nil {
			return err
		}
		*out = append(*out, cb)
		return nil
	})
	graph.Resources = []viewer.Resource{state.checker}

	return []*viewer.CommandGraph{graph}, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.frames++
	if state.frames%600 == 0 {
		core.LogInfo("frame %d, fps %.1f", state.frames, core.MetricsFPS())
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}

// uploadTexture realizes the mip chain on the device and leaves the image
// ready for sampling.
func uploadTexture(ctx *viewer.CompileContext, levels []image.Image) error {
	device, ok := ctx.Device.(*vulkan.VulkanDevice)
	if !ok {
		// Unit test contexts run without a GPU.
		return nil
	}
	pool := ctx.CommandPool.(*vulkan.VulkanCommandPool)
	queue := ctx.GraphicsQueue.(*vulkan.VulkanQueue)

	bounds := levels[0].Bounds()
	img, err := vulkan.ImageCreate(
		device,
		vk.ImageType2d,
		uint32(bounds.Dx()),
		uint32(bounds.Dy()),
		uint32(len(levels)),
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}

	cb, err := vulkan.AllocateAndBeginSingleUse(pool)
	if err != nil {
		return err
	}
	if err := img.TransitionLayout(cb, vk.FormatR8g8b8a8Unorm, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	// TODO: copy the texel data through a staging buffer per mip level.
	if err := img.TransitionLayout(cb, vk.FormatR8g8b8a8Unorm, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return err
	}
	return cb.EndSingleUse(queue)
}

func checkerboard(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/32+y/32)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 230, G: 230, B: 230, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
			}
		}
	}
	return img
}
