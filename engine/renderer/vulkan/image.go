package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type VulkanImage struct {
	Handle    vk.Image
	Memory    vk.DeviceMemory
	View      vk.ImageView
	Width     uint32
	Height    uint32
	MipLevels uint32

	device *VulkanDevice
}

// ImageCreate creates an image with backing memory and, when aspect flags are
// given, a view. mipLevels comes from the compile step's level computation;
// pass 1 for render targets.
func ImageCreate(
	device *VulkanDevice,
	imageType vk.ImageType,
	width uint32,
	height uint32,
	mipLevels uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspect vk.ImageAspectFlags,
) (*VulkanImage, error) {
	if mipLevels == 0 {
		mipLevels = 1
	}

	image := &VulkanImage{
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		device:    device,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1, // TODO: make configurable for 3D image support
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(device.LogicalDevice, &imageCreateInfo, device.allocator, &handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create image: %s", err.Error())
		return nil, err
	}
	image.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device.LogicalDevice, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := device.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		return nil, fmt.Errorf("required memory type not found, image not valid")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device.LogicalDevice, &allocateInfo, device.allocator, &memory); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to allocate image memory: %s", err.Error())
		return nil, err
	}
	image.Memory = memory

	if res := vk.BindImageMemory(device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		return nil, ResultToError(res)
	}

	if createView {
		if err := image.createView(format, viewAspect); err != nil {
			return nil, err
		}
	}

	return image, nil
}

func (vi *VulkanImage) createView(format vk.Format, aspect vk.ImageAspectFlags) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d, // TODO: make configurable
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     vi.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(vi.device.LogicalDevice, &viewInfo, vi.device.allocator, &view); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create image view: %s", err.Error())
		return err
	}
	vi.View = view
	return nil
}

// TransitionLayout records a layout transition barrier covering every mip
// level of the image.
func (vi *VulkanImage) TransitionLayout(cb *VulkanCommandBuffer, format vk.Format, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     vi.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var sourceStage, destinationStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(cb.Handle,
		sourceStage, destinationStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

func (vi *VulkanImage) Destroy() {
	if vi.View != nil {
		vk.DestroyImageView(vi.device.LogicalDevice, vi.View, vi.device.allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(vi.device.LogicalDevice, vi.Memory, vi.device.allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(vi.device.LogicalDevice, vi.Handle, vi.device.allocator)
		vi.Handle = nil
	}
}
