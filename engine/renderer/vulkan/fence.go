package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	device *VulkanDevice
}

func NewFence(device *VulkanDevice, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
		device:     device,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(device.LogicalDevice, &fenceCreateInfo, device.allocator, &handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create fence: %s", err.Error())
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != nil {
		vk.DestroyFence(vf.device.LogicalDevice, vf.Handle, vf.device.allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals or the timeout elapses. An already
// signaled fence returns immediately.
func (vf *VulkanFence) Wait(timeoutNs uint64) bool {
	if vf.IsSignaled {
		return true
	}

	result := vk.WaitForFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed: %s", VulkanResultString(result))
	}
	return false
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to reset fence: %s", err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}
