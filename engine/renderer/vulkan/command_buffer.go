package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandPool allocates command buffers for one queue family. Each
// recording goroutine allocates from its own pool so recording needs no
// cross-goroutine coordination.
type VulkanCommandPool struct {
	Handle      vk.CommandPool
	FamilyIndex uint32

	device *VulkanDevice
}

func NewCommandPool(device *VulkanDevice, familyIndex uint32) (*VulkanCommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var handle vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &createInfo, device.allocator, &handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create command pool: %s", err.Error())
		return nil, err
	}
	return &VulkanCommandPool{Handle: handle, FamilyIndex: familyIndex, device: device}, nil
}

// Reset recycles every command buffer allocated from the pool.
func (p *VulkanCommandPool) Reset() error {
	return p.device.locks.SafeCall(CommandPoolManagement, func() error {
		return ResultToError(vk.ResetCommandPool(p.device.LogicalDevice, p.Handle, 0))
	})
}

func (p *VulkanCommandPool) Destroy() {
	if p.Handle != nil {
		vk.DestroyCommandPool(p.device.LogicalDevice, p.Handle, p.device.allocator)
		p.Handle = nil
	}
}

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState

	pool *VulkanCommandPool
}

func NewVulkanCommandBuffer(pool *VulkanCommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.Handle,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(pool.device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to allocate command buffer: %s", err.Error())
		return nil, err
	}

	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
		pool:   pool,
	}, nil
}

func (v *VulkanCommandBuffer) Free() {
	vk.FreeCommandBuffers(v.pool.device.LogicalDevice, v.pool.Handle, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to begin command buffer: %s", err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to end command buffer: %s", err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// AllocateAndBeginSingleUse allocates a primary command buffer and starts a
// one time submit recording, for transfer work during compilation.
func AllocateAndBeginSingleUse(pool *VulkanCommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to the queue, waits for completion and
// frees the buffer.
func (v *VulkanCommandBuffer) EndSingleUse(queue *VulkanQueue) error {
	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	err := queue.device.locks.SafeQueueCall(queue.familyIndex, func() error {
		if res := vk.QueueSubmit(queue.handle, 1, []vk.SubmitInfo{submitInfo}, nil); res != vk.Success {
			return ResultToError(res)
		}
		return ResultToError(vk.QueueWaitIdle(queue.handle))
	})
	if err != nil {
		core.LogError("single use command buffer submission failed: %s", err.Error())
		return err
	}

	v.Free()
	return nil
}
