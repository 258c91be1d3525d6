package viewer

import (
	"github.com/spaghettifunk/vortex/engine/core"
)

// RecordFunc encodes one frame's worth of a command graph's work into command
// buffers. The scene traversal and drawing-command encoding live behind this
// callback; the pager reference lets draw code request streamed resources.
type RecordFunc func(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error

// CommandGraph is an ordered, device/queue-bound unit of drawing or compute
// work. Graphs sharing the same (device, queue family, present family) triple
// are batched into one RecordAndSubmitTask.
type CommandGraph struct {
	ID     string
	Device Device

	QueueFamily int
	// PresentFamily is negative when the graph does off-screen or compute
	// work and has no window to present to.
	PresentFamily int
	Window        Window

	// Resources referenced by the graph, realized once by the compile step.
	Resources []Resource

	// MaxSlot is the maximum pipeline slot observed across the graph's
	// device during compile, used for resource barrier ordering.
	MaxSlot uint32

	RecordFunc RecordFunc
}

// NewCommandGraph creates a graph bound to the given device queue family.
// Pass a window and a non-negative presentFamily for graphs that present.
func NewCommandGraph(device Device, queueFamily, presentFamily int, window Window, record RecordFunc) *CommandGraph {
	return &CommandGraph{
		ID:            core.IdentifierAcquire(),
		Device:        device,
		QueueFamily:   queueFamily,
		PresentFamily: presentFamily,
		Window:        window,
		RecordFunc:    record,
	}
}

// Accept walks the graph's resources with the given visitor.
func (cg *CommandGraph) Accept(visitor GraphVisitor) {
	for _, r := range cg.Resources {
		visitor.Apply(r)
	}
}

// Record encodes the graph's commands for the given frame, appending the
// resulting command buffers to out.
func (cg *CommandGraph) Record(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error {
	if cg.RecordFunc == nil {
		return nil
	}
	return cg.RecordFunc(out, frame, pager)
}
