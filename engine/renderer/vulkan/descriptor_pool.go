package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

// VulkanDescriptorPool is sized once by the compile step from the collected
// descriptor statistics and serves every descriptor set of its device.
type VulkanDescriptorPool struct {
	Handle  vk.DescriptorPool
	MaxSets uint32

	device *VulkanDevice
}

func NewDescriptorPool(device *VulkanDevice, maxSets uint32, sizes []vk.DescriptorPoolSize) (*VulkanDescriptorPool, error) {
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(device.LogicalDevice, &createInfo, device.allocator, &handle); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create descriptor pool: %s", err.Error())
		return nil, err
	}

	core.LogDebug("descriptor pool created (%d sets, %d size entries)", maxSets, len(sizes))
	return &VulkanDescriptorPool{Handle: handle, MaxSets: maxSets, device: device}, nil
}

// Allocate returns descriptor sets for the given layouts.
func (p *VulkanDescriptorPool) Allocate(layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: uint32(len(layouts)),
		PSetLayouts:        layouts,
	}

	sets := make([]vk.DescriptorSet, len(layouts))
	if res := vk.AllocateDescriptorSets(p.device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to allocate descriptor sets: %s", err.Error())
		return nil, err
	}
	return sets, nil
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(p.device.LogicalDevice, p.Handle, p.device.allocator)
		p.Handle = nil
	}
}
