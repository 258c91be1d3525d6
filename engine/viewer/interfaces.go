package viewer

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

// CommandBuffer is an opaque handle to one recorded command buffer. The
// Vulkan backend records vk.CommandBuffer values; tests use stand-ins.
type CommandBuffer interface{}

// Semaphore is an opaque handle to one GPU synchronization primitive used to
// order a task's submission against its presentation.
type Semaphore interface{}

// CommandPool is realized by the backend; the compile step resets it between
// upload batches.
type CommandPool interface {
	Reset() error
}

// DescriptorPool is realized by the backend once per device during the
// compile step; resources down-cast to the backend's concrete pool type when
// they realize their descriptor sets.
type DescriptorPool interface{}

// Queue is one device queue. A RecordAndSubmitTask owns exactly one for
// submission; a Presentation owns exactly one for presenting.
type Queue interface {
	// Submit enqueues the command buffers, waiting on waits and signalling
	// signals when the work completes.
	Submit(commandBuffers []CommandBuffer, waits []Semaphore, signals []Semaphore) error
	// Present queues the windows' current swapchain images for presentation
	// after waits have signalled.
	Present(windows []Window, waits []Semaphore) error
	WaitIdle() error
}

// Device is one logical GPU device.
type Device interface {
	// Queue returns the device queue for the given family index.
	Queue(familyIndex int) (Queue, error)
	// QueueFamily returns the index of the first physical-device queue family
	// supporting the given capability flag.
	QueueFamily(flags vk.QueueFlagBits) (int, error)
	NewSemaphore() (Semaphore, error)
	NewCommandPool(familyIndex int) (CommandPool, error)
	NewDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (DescriptorPool, error)
	WaitIdle() error
}

// Window is one on-screen surface with its swapchain.
type Window interface {
	// PollEvents pushes any pending window events onto the sink and reports
	// whether there were any.
	PollEvents(events *core.EventQueue) bool
	// AcquireNextImage acquires the next swapchain image. Transient failures
	// are reported via the core sentinel errors and recovered by the caller
	// with Resize plus a retry.
	AcquireNextImage() error
	// Resize forces a rebuild of the swapchain.
	Resize()
	// ImageAvailableSemaphore returns the semaphore signalled when the most
	// recently acquired image is ready, or nil when the window has none.
	// Submissions touching the window's images must wait on it.
	ImageAvailableSemaphore() Semaphore
	Visible() bool
	Valid() bool
	Device() Device
}
