package vulkan

import (
	"fmt"
	"runtime"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/viewer"
)

// VulkanDevice pairs a physical device with its logical device and satisfies
// the viewer's Device contract: queue lookup by family index, family lookup
// by capability bit and the factory methods the compile step relies on.
type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	queueFamilies []vk.QueueFamilyProperties

	allocator *vk.AllocationCallbacks
	locks     *VulkanLockPool

	mutex  sync.Mutex
	queues map[int]*VulkanQueue
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex uint32
	PresentFamilyIndex  uint32
	ComputeFamilyIndex  uint32
	TransferFamilyIndex uint32
}

// NewVulkanDevice selects a physical device able to present to the surface
// and creates its logical device. The device is registered on the context so
// Destroy tears it down with the instance.
func NewVulkanDevice(ctx *VulkanContext, surface vk.Surface) (*VulkanDevice, error) {
	device := &VulkanDevice{
		allocator: ctx.Allocator,
		locks:     ctx.locks,
		queues:    make(map[int]*VulkanQueue),
	}

	if err := device.selectPhysicalDevice(ctx, surface); err != nil {
		return nil, err
	}
	if err := device.createLogicalDevice(); err != nil {
		return nil, err
	}
	if !device.detectDepthFormat() {
		device.DepthFormat = vk.FormatUndefined
		core.LogWarn("no supported depth format found")
	}

	ctx.Devices = append(ctx.Devices, device)
	return device, nil
}

// Queue returns the device queue of the given family, creating its wrapper
// on first use. All the viewer's tasks that share a family share the wrapper
// and therefore its submission lock.
func (d *VulkanDevice) Queue(familyIndex int) (viewer.Queue, error) {
	if familyIndex < 0 || familyIndex >= len(d.queueFamilies) {
		return nil, fmt.Errorf("queue family index %d out of range (device has %d families)", familyIndex, len(d.queueFamilies))
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	q, ok := d.queues[familyIndex]
	if !ok {
		var handle vk.Queue
		vk.GetDeviceQueue(d.LogicalDevice, uint32(familyIndex), 0, &handle)
		q = &VulkanQueue{
			device:      d,
			handle:      handle,
			familyIndex: uint32(familyIndex),
		}
		d.queues[familyIndex] = q
	}
	return q, nil
}

// QueueFamily returns the first queue family carrying every requested
// capability bit.
func (d *VulkanDevice) QueueFamily(flags vk.QueueFlagBits) (int, error) {
	for i, family := range d.queueFamilies {
		if vk.QueueFlagBits(family.QueueFlags)&flags == flags {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no queue family supports flags 0x%x", flags)
}

func (d *VulkanDevice) NewSemaphore() (viewer.Semaphore, error) {
	return NewSemaphore(d)
}

func (d *VulkanDevice) NewCommandPool(familyIndex int) (viewer.CommandPool, error) {
	return NewCommandPool(d, uint32(familyIndex))
}

func (d *VulkanDevice) NewDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (viewer.DescriptorPool, error) {
	return NewDescriptorPool(d, maxSets, sizes)
}

// WaitIdle blocks until every queue on the device has drained.
func (d *VulkanDevice) WaitIdle() error {
	return d.locks.SafeCall(DeviceManagement, func() error {
		return ResultToError(vk.DeviceWaitIdle(d.LogicalDevice))
	})
}

func (d *VulkanDevice) Destroy() {
	d.mutex.Lock()
	d.queues = make(map[int]*VulkanQueue)
	d.mutex.Unlock()

	core.LogInfo("Destroying logical device...")
	if d.LogicalDevice != nil {
		vk.DestroyDevice(d.LogicalDevice, d.allocator)
		d.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
	d.GraphicsQueueIndex = -1
	d.PresentQueueIndex = -1
	d.TransferQueueIndex = -1
}

func (d *VulkanDevice) selectPhysicalDevice(ctx *VulkanContext, surface vk.Surface) error {
	var physicalDeviceCount uint32 = 0
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return ResultToError(res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return ResultToError(res)
	}

	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
		memory.Deref()

		// TODO: these requirements should be driven by engine configuration.
		requirements := VulkanPhysicalDeviceRequirements{
			Graphics:             true,
			Present:              true,
			Transfer:             true,
			SamplerAnisotropy:    true,
			DiscreteGPU:          true,
			DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		}
		if runtime.GOOS == "darwin" {
			requirements.DiscreteGPU = false
		}

		queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
		if !physicalDeviceMeetsRequirements(physicalDevices[i], surface, &properties, &features, &requirements, &queueInfo, &d.SwapchainSupport) {
			continue
		}

		core.LogInfo("Selected device: '%s'.", string(properties.DeviceName[:]))
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"GPU Driver version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.DriverVersion)),
			vk.Version.Minor(vk.Version(properties.DriverVersion)),
			vk.Version.Patch(vk.Version(properties.DriverVersion)),
		)
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)

		d.PhysicalDevice = physicalDevices[i]
		d.GraphicsQueueIndex = int32(queueInfo.GraphicsFamilyIndex)
		d.PresentQueueIndex = int32(queueInfo.PresentFamilyIndex)
		d.TransferQueueIndex = int32(queueInfo.TransferFamilyIndex)
		d.Properties = properties
		d.Features = features
		d.Memory = memory

		var queueFamilyCount uint32 = 0
		vk.GetPhysicalDeviceQueueFamilyProperties(d.PhysicalDevice, &queueFamilyCount, nil)
		d.queueFamilies = make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(d.PhysicalDevice, &queueFamilyCount, d.queueFamilies)
		for j := range d.queueFamilies {
			d.queueFamilies[j].Deref()
		}
		break
	}

	if d.PhysicalDevice == nil {
		return fmt.Errorf("no physical devices were found which meet the requirements")
	}

	core.LogInfo("Physical device selected.")
	return nil
}

func (d *VulkanDevice) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	presentSharesGraphicsQueue := d.GraphicsQueueIndex == d.PresentQueueIndex
	transferSharesGraphicsQueue := d.GraphicsQueueIndex == d.TransferQueueIndex

	indices := []uint32{uint32(d.GraphicsQueueIndex)}
	if !presentSharesGraphicsQueue {
		indices = append(indices, uint32(d.PresentQueueIndex))
	}
	if !transferSharesGraphicsQueue {
		indices = append(indices, uint32(d.TransferQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if portabilitySubsetPresent(d.PhysicalDevice) {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.allocator, &logicalDevice); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to create logical device: %s", err.Error())
		return err
	}
	d.LogicalDevice = logicalDevice

	core.LogInfo("Logical device created.")
	return nil
}

func (d *VulkanDevice) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		properties := vk.FormatProperties{}
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures) & flags) == flags {
			d.DepthFormat = candidate
			return true
		} else if (vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures) & flags) == flags {
			d.DepthFormat = candidate
			return true
		}
	}
	return false
}

func portabilitySubsetPresent(device vk.PhysicalDevice) bool {
	var availableExtensionCount uint32 = 0
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	if availableExtensionCount == 0 {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		if extensionName(availableExtensions[i].ExtensionName[:]) == "VK_KHR_portability_subset" {
			return true
		}
	}
	return false
}

func extensionName(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32 = 0
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	hasGraphics := false
	hasPresent := false
	hasCompute := false
	hasTransfer := false

	// Prefer the family with the fewest additional capabilities for
	// transfer, it is more likely a dedicated transfer queue.
	minTransferScore := 255
	for i := 0; i < int(queueFamilyCount); i++ {
		queueFamilies[i].Deref()
		currentTransferScore := 0

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			outQueueInfo.GraphicsFamilyIndex = uint32(i)
			hasGraphics = true
			currentTransferScore++
		}

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueComputeBit > 0 {
			outQueueInfo.ComputeFamilyIndex = uint32(i)
			hasCompute = true
			currentTransferScore++
		}

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueTransferBit > 0 {
			if currentTransferScore <= minTransferScore {
				minTransferScore = currentTransferScore
				outQueueInfo.TransferFamilyIndex = uint32(i)
				hasTransfer = true
			}
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		if supportsPresent == vk.True {
			outQueueInfo.PresentFamilyIndex = uint32(i)
			hasPresent = true
		}
	}

	if (requirements.Graphics && !hasGraphics) ||
		(requirements.Present && !hasPresent) ||
		(requirements.Compute && !hasCompute) ||
		(requirements.Transfer && !hasTransfer) {
		return false
	}

	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", outQueueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", outQueueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", outQueueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", outQueueInfo.ComputeFamilyIndex)

	if err := querySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		return false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		var availableExtensionCount uint32 = 0
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
			return false
		}
		if availableExtensionCount != 0 {
			availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
			if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
				return false
			}
			for _, required := range requirements.DeviceExtensionNames {
				found := false
				for j := range availableExtensions {
					availableExtensions[j].Deref()
					if required == extensionName(availableExtensions[j].ExtensionName[:]) {
						found = true
						break
					}
				}
				if !found {
					core.LogInfo("Required extension not found: '%s', skipping device.", required)
					return false
				}
			}
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}

	return true
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return ResultToError(res)
	}
	supportInfo.Capabilities.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return ResultToError(res)
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return ResultToError(res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		err := ResultToError(res)
		core.LogError("failed to get physical device surface present modes: %s", err.Error())
		return err
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			err := ResultToError(res)
			core.LogError("failed to get physical device surface present modes: %s", err.Error())
			return err
		}
	}
	return nil
}
