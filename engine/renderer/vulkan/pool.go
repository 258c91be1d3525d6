package vulkan

import "sync"

type LockGroup string

const (
	DeviceManagement        LockGroup = "device_management"
	CommandPoolManagement   LockGroup = "command_pool_management"
	QueueManagement         LockGroup = "queue_management"
	ImageManagement         LockGroup = "image_management"
	SwapchainManagement     LockGroup = "swapchain_management"
	DescriptorManagement    LockGroup = "descriptor_management"
	SynchronizationManagement LockGroup = "synchronization_management"
)

// VulkanLockPool serializes access to Vulkan objects that must not be used
// from several goroutines at once. Queues get one mutex per family so
// submissions to distinct families proceed in parallel while submissions to
// the same family are serialized.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lockFor(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lockFor(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) queueLockFor(index uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, exists := vs.queueMutexes[index]
	if !exists {
		l = &sync.Mutex{}
		vs.queueMutexes[index] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLockFor(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}
