package viewer

import (
	"github.com/spaghettifunk/vortex/engine/core"
)

// RecordAndSubmitTask owns one device queue and the command graphs recorded
// for it each frame. Created once during setup; its command buffer list is
// cleared and repopulated every frame.
type RecordAndSubmitTask struct {
	Device Device
	Queue  Queue

	CommandGraphs []*CommandGraph
	Windows       []Window

	WaitSemaphores   []Semaphore
	SignalSemaphores []Semaphore

	Pager *DatabasePager

	commandBuffers []CommandBuffer
}

func NewRecordAndSubmitTask(device Device) *RecordAndSubmitTask {
	return &RecordAndSubmitTask{Device: device}
}

// Start begins a frame's bookkeeping: the previous frame's command buffer
// list is discarded.
func (t *RecordAndSubmitTask) Start() {
	t.commandBuffers = t.commandBuffers[:0]
}

// Record encodes every command graph into the task's command buffer list.
func (t *RecordAndSubmitTask) Record(frame core.FrameStamp) error {
	for _, cg := range t.CommandGraphs {
		if err := cg.Record(&t.commandBuffers, frame, t.Pager); err != nil {
			return err
		}
	}
	return nil
}

// Finish submits the recorded command buffers to the task's queue. The wait
// set covers the task's own semaphores plus every window's image-available
// semaphore, so the submission cannot write to a swapchain image before its
// acquire has signalled. A task without a queue (graphs grouped under a nil
// device) never produces GPU work and finishes as a no-op.
func (t *RecordAndSubmitTask) Finish(commandBuffers []CommandBuffer) error {
	if t.Queue == nil {
		core.LogWarn("record and submit task has no queue, dropping %d command buffers", len(commandBuffers))
		return nil
	}

	waits := make([]Semaphore, 0, len(t.WaitSemaphores)+len(t.Windows))
	waits = append(waits, t.WaitSemaphores...)
	for _, window := range t.Windows {
		if sem := window.ImageAvailableSemaphore(); sem != nil {
			waits = append(waits, sem)
		}
	}
	return t.Queue.Submit(commandBuffers, waits, t.SignalSemaphores)
}

// Submit runs the whole per-frame protocol: start, record every graph, then
// submit.
func (t *RecordAndSubmitTask) Submit(frame core.FrameStamp) error {
	t.Start()
	if err := t.Record(frame); err != nil {
		return err
	}
	return t.Finish(t.commandBuffers)
}
