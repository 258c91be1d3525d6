package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type VulkanSwapchain struct {
	ImageFormat       vk.SurfaceFormat
	MaxFramesInFlight uint8
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView

	DepthAttachment *VulkanImage

	device  *VulkanDevice
	surface vk.Surface
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(device *VulkanDevice, surface vk.Surface, width uint32, height uint32) (*VulkanSwapchain, error) {
	return createSwapchain(device, surface, width, height)
}

// Recreate destroys the swapchain and builds a new one at the given size,
// after the device drains.
func (vs *VulkanSwapchain) Recreate(width uint32, height uint32) (*VulkanSwapchain, error) {
	device := vs.device
	surface := vs.surface
	vs.destroySwapchain()
	return createSwapchain(device, surface, width, height)
}

func (vs *VulkanSwapchain) Destroy() {
	vs.destroySwapchain()
}

// AcquireNextImageIndex acquires the next presentable image. Failures come
// back as the engine's sentinel errors so the caller can distinguish
// transient surface conditions from fatal ones; a suboptimal swapchain still
// acquires successfully.
func (vs *VulkanSwapchain) AcquireNextImageIndex(timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(vs.device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)

	if result == vk.Success || result == vk.Suboptimal {
		return imageIndex, nil
	}
	err := ResultToError(result)
	if err == nil {
		err = core.ErrUnknown
	}
	return 0, err
}

func createSwapchain(device *VulkanDevice, surface vk.Surface, width, height uint32) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{
		MaxFramesInFlight: 2,
		device:            device,
		surface:           surface,
	}

	// Requery so the capabilities reflect the current surface size.
	if err := querySwapchainSupport(device.PhysicalDevice, surface, &device.SwapchainSupport); err != nil {
		return nil, err
	}
	support := &device.SwapchainSupport

	// Choose a swap surface format, preferring 8-bit BGRA sRGB.
	found := false
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			found = true
		}
	}
	if !found {
		swapchain.ImageFormat = support.Formats[0]
	}

	presentMode := vk.PresentModeFifo
	for i := 0; i < int(support.PresentModeCount); i++ {
		if support.PresentModes[i] == vk.PresentModeMailbox {
			presentMode = vk.PresentModeMailbox
			break
		}
	}

	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = clamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = clamp(swapchainExtent.Height, min.Height, max.Height)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	swapchainCreateInfo.PreTransform = support.Capabilities.CurrentTransform
	swapchainCreateInfo.CompositeAlpha = vk.CompositeAlphaOpaqueBit
	swapchainCreateInfo.PresentMode = presentMode
	swapchainCreateInfo.Clipped = vk.True
	swapchainCreateInfo.OldSwapchain = nil

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, device.allocator, &swapchainHandle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create swapchain: %s", err.Error())
		return nil, err
	}
	swapchain.Handle = swapchainHandle

	// Images
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to get swapchain images: %s", err.Error())
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to get swapchain images: %s", err.Error())
		return nil, err
	}

	// Views
	for i := 0; i < int(swapchain.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, device.allocator, &swapchain.Views[i]); res != vk.Success {
			err := ResultToError(res)
			core.LogError("failed to create image view: %s", err.Error())
			return nil, err
		}
	}

	// Depth resources
	depthAttachment, err := ImageCreate(
		device,
		vk.ImageType2d,
		swapchainExtent.Width,
		swapchainExtent.Height,
		1,
		device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	swapchain.DepthAttachment = depthAttachment

	core.LogInfo("Swapchain created successfully.")
	return swapchain, nil
}

func (vs *VulkanSwapchain) destroySwapchain() {
	vk.DeviceWaitIdle(vs.device.LogicalDevice)
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy()
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are destroyed with it.
	for i := 0; i < int(vs.ImageCount); i++ {
		vk.DestroyImageView(vs.device.LogicalDevice, vs.Views[i], vs.device.allocator)
	}

	vk.DestroySwapchain(vs.device.LogicalDevice, vs.Handle, vs.device.allocator)
	vs.Handle = nil
}

func clamp(value, min, max uint32) uint32 {
	if value < min {
		return min
	}
	if max > 0 && value > max {
		return max
	}
	return value
}
