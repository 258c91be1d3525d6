package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

// VulkanContext holds the per-instance Vulkan state shared by every device
// and window: the instance itself, the optional allocation callbacks and the
// debug messenger.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	// TODO: only in DEBUG mode
	debugMessenger vk.DebugReportCallback

	Devices []*VulkanDevice

	locks *VulkanLockPool
}

// NewVulkanContext creates the instance. surfaceExtensions carries the
// extensions the windowing system needs, obtained from the platform layer.
func NewVulkanContext(applicationName string, surfaceExtensions []string) (*VulkanContext, error) {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(applicationName),
		PEngineName:        VulkanSafeString("Vortex Engine"),
	}

	requiredExtensions := []string{vk.KhrSurfaceExtensionName}
	requiredExtensions = append(requiredExtensions, surfaceExtensions...)

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(requiredExtensions),
	}

	ctx := &VulkanContext{
		locks: NewVulkanLockPool(),
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &instance); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create Vulkan instance: %s", err.Error())
		return nil, err
	}
	ctx.Instance = instance

	if err := vk.InitInstance(instance); err != nil {
		return nil, err
	}

	core.LogInfo("Vulkan instance created.")
	return ctx, nil
}

// Destroy tears down every device created through this context, then the
// instance itself.
func (ctx *VulkanContext) Destroy() {
	for _, device := range ctx.Devices {
		device.Destroy()
	}
	ctx.Devices = nil

	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
	core.LogInfo("Vulkan instance destroyed.")
}

// FindMemoryIndex returns the index of a device memory type matching the
// filter and property flags, or -1 when none fits.
func (d *VulkanDevice) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
