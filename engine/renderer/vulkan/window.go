package vulkan

import (
	"math"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/platform"
	"github.com/spaghettifunk/vortex/engine/viewer"
)

// VulkanWindow binds a native window to a surface, a device and a swapchain.
// It satisfies the viewer's Window contract: event polling, image
// acquisition with sentinel error classification, and swapchain rebuild on
// demand.
type VulkanWindow struct {
	platformWindow *platform.Window
	instance       vk.Instance
	device         *VulkanDevice
	surface        vk.Surface
	swapchain      *VulkanSwapchain

	imageAvailable *VulkanSemaphore
	imageIndex     uint32

	// The size generation bumps whenever the framebuffer resizes; acquire
	// reports the swapchain out of date until Resize catches the swapchain
	// up to the current generation.
	framebufferSizeGeneration     atomic.Uint64
	framebufferSizeLastGeneration uint64

	valid bool
}

// NewVulkanWindow creates the surface for the native window, binds it to a
// device and builds the first swapchain. Pass nil as device to create a
// dedicated device for this window; pass an existing one to share it.
func NewVulkanWindow(ctx *VulkanContext, platformWindow *platform.Window, device *VulkanDevice) (*VulkanWindow, error) {
	surfacePtr, err := platformWindow.Handle.CreateWindowSurface(ctx.Instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err.Error())
		return nil, err
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	if device == nil {
		device, err = NewVulkanDevice(ctx, surface)
		if err != nil {
			return nil, err
		}
	}

	width, height := platformWindow.FramebufferSize()
	swapchain, err := SwapchainCreate(device, surface, width, height)
	if err != nil {
		return nil, err
	}

	imageAvailable, err := NewSemaphore(device)
	if err != nil {
		return nil, err
	}

	w := &VulkanWindow{
		platformWindow: platformWindow,
		instance:       ctx.Instance,
		device:         device,
		surface:        surface,
		swapchain:      swapchain,
		imageAvailable: imageAvailable,
		valid:          true,
	}

	return w, nil
}

func (w *VulkanWindow) PollEvents(events *core.EventQueue) bool {
	delivered := w.platformWindow.PollEvents(events)
	if w.platformWindow.ShouldClose() {
		w.valid = false
	}
	return delivered
}

// NotifyResize marks the swapchain stale. Called from the platform's resize
// event path; the actual rebuild happens on the frame loop through Resize.
func (w *VulkanWindow) NotifyResize() {
	w.framebufferSizeGeneration.Add(1)
}

// AcquireNextImage acquires the next swapchain image. A window whose
// framebuffer changed since the last rebuild reports ErrSwapchainOutOfDate
// without touching the device, so the frame loop rebuilds before retrying.
func (w *VulkanWindow) AcquireNextImage() error {
	if w.framebufferSizeGeneration.Load() != w.framebufferSizeLastGeneration {
		return core.ErrSwapchainOutOfDate
	}

	index, err := w.swapchain.AcquireNextImageIndex(math.MaxUint64, w.imageAvailable.Handle, nil)
	if err != nil {
		return err
	}
	w.imageIndex = index
	return nil
}

// Resize rebuilds the swapchain at the current framebuffer size.
func (w *VulkanWindow) Resize() {
	generation := w.framebufferSizeGeneration.Load()
	width, height := w.platformWindow.FramebufferSize()

	swapchain, err := w.swapchain.Recreate(width, height)
	if err != nil {
		core.LogError("swapchain rebuild failed: %s", err.Error())
		w.valid = false
		return
	}
	w.swapchain = swapchain
	w.framebufferSizeLastGeneration = generation
	core.LogDebug("swapchain rebuilt at %dx%d", width, height)
}

func (w *VulkanWindow) Visible() bool {
	return w.valid && w.platformWindow.Visible()
}

func (w *VulkanWindow) Valid() bool {
	return w.valid
}

func (w *VulkanWindow) Device() viewer.Device {
	return w.device
}

// ImageAvailableSemaphore exposes the acquire semaphore so tasks can wait on
// it before their color attachment writes.
func (w *VulkanWindow) ImageAvailableSemaphore() viewer.Semaphore {
	if w.imageAvailable == nil {
		return nil
	}
	return w.imageAvailable
}

func (w *VulkanWindow) Swapchain() *VulkanSwapchain {
	return w.swapchain
}

func (w *VulkanWindow) Destroy() {
	w.valid = false
	if w.swapchain != nil {
		w.swapchain.Destroy()
		w.swapchain = nil
	}
	if w.imageAvailable != nil {
		w.imageAvailable.Destroy()
		w.imageAvailable = nil
	}
	if w.surface != nil {
		vk.DestroySurface(w.instance, w.surface, w.device.allocator)
		w.surface = nil
	}
}
