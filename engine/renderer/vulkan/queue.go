package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/viewer"
)

// VulkanQueue wraps a device queue. Submissions to the same queue family go
// through one mutex in the device's lock pool; queues of distinct families
// submit concurrently.
type VulkanQueue struct {
	device      *VulkanDevice
	handle      vk.Queue
	familyIndex uint32
}

func (q *VulkanQueue) Submit(commandBuffers []viewer.CommandBuffer, waits []viewer.Semaphore, signals []viewer.Semaphore) error {
	handles := make([]vk.CommandBuffer, 0, len(commandBuffers))
	for _, cb := range commandBuffers {
		vcb, ok := cb.(*VulkanCommandBuffer)
		if !ok {
			return fmt.Errorf("submitted command buffer is not a vulkan command buffer (%T)", cb)
		}
		handles = append(handles, vcb.Handle)
		vcb.UpdateSubmitted()
	}

	waitHandles, err := semaphoreHandles(waits)
	if err != nil {
		return err
	}
	signalHandles, err := semaphoreHandles(signals)
	if err != nil {
		return err
	}

	// Wait at the color attachment output stage, one stage mask per wait.
	waitStages := make([]vk.PipelineStageFlags, len(waitHandles))
	for i := range waitStages {
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   uint32(len(handles)),
		PCommandBuffers:      handles,
		WaitSemaphoreCount:   uint32(len(waitHandles)),
		PWaitSemaphores:      waitHandles,
		PWaitDstStageMask:    waitStages,
		SignalSemaphoreCount: uint32(len(signalHandles)),
		PSignalSemaphores:    signalHandles,
	}

	return q.device.locks.SafeQueueCall(q.familyIndex, func() error {
		return ResultToError(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, nil))
	})
}

// Present returns each window's acquired image to its swapchain. A swapchain
// reported out of date or suboptimal is rebuilt; other failures surface as
// the engine's sentinel errors.
func (q *VulkanQueue) Present(windows []viewer.Window, waits []viewer.Semaphore) error {
	waitHandles, err := semaphoreHandles(waits)
	if err != nil {
		return err
	}

	swapchains := make([]vk.Swapchain, 0, len(windows))
	imageIndices := make([]uint32, 0, len(windows))
	vulkanWindows := make([]*VulkanWindow, 0, len(windows))
	for _, w := range windows {
		vw, ok := w.(*VulkanWindow)
		if !ok {
			return fmt.Errorf("presented window is not a vulkan window (%T)", w)
		}
		swapchains = append(swapchains, vw.swapchain.Handle)
		imageIndices = append(imageIndices, vw.imageIndex)
		vulkanWindows = append(vulkanWindows, vw)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitHandles)),
		PWaitSemaphores:    waitHandles,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      imageIndices,
	}

	var result vk.Result
	if err := q.device.locks.SafeQueueCall(q.familyIndex, func() error {
		result = vk.QueuePresent(q.handle, &presentInfo)
		return nil
	}); err != nil {
		return err
	}

	if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
		// The surface changed under us. Rebuild and let the next acquire
		// pick up the new swapchain.
		for _, vw := range vulkanWindows {
			vw.Resize()
		}
		return nil
	} else if result != vk.Success {
		err := ResultToError(result)
		core.LogError("failed to present swapchain image: %s", err.Error())
		return err
	}
	return nil
}

func (q *VulkanQueue) WaitIdle() error {
	return q.device.locks.SafeQueueCall(q.familyIndex, func() error {
		return ResultToError(vk.QueueWaitIdle(q.handle))
	})
}

func semaphoreHandles(semaphores []viewer.Semaphore) ([]vk.Semaphore, error) {
	handles := make([]vk.Semaphore, 0, len(semaphores))
	for _, s := range semaphores {
		vs, ok := s.(*VulkanSemaphore)
		if !ok {
			return nil, fmt.Errorf("semaphore is not a vulkan semaphore (%T)", s)
		}
		handles = append(handles, vs.Handle)
	}
	return handles, nil
}
