package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type VulkanSemaphore struct {
	Handle vk.Semaphore

	device *VulkanDevice
}

func NewSemaphore(device *VulkanDevice) (*VulkanSemaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var handle vk.Semaphore
	if res := vk.CreateSemaphore(device.LogicalDevice, &createInfo, device.allocator, &handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create semaphore: %s", err.Error())
		return nil, err
	}
	return &VulkanSemaphore{Handle: handle, device: device}, nil
}

func (vs *VulkanSemaphore) Destroy() {
	if vs.Handle != nil {
		vk.DestroySemaphore(vs.device.LogicalDevice, vs.Handle, vs.device.allocator)
		vs.Handle = nil
	}
}
