package viewer

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

type fakeQueue struct {
	family int

	mutex       sync.Mutex
	submissions [][]CommandBuffer
	waits       [][]Semaphore
	signals     [][]Semaphore
	presented   int
}

func (q *fakeQueue) Submit(commandBuffers []CommandBuffer, waits []Semaphore, signals []Semaphore) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	buffers := make([]CommandBuffer, len(commandBuffers))
	copy(buffers, commandBuffers)
	q.submissions = append(q.submissions, buffers)
	q.waits = append(q.waits, waits)
	q.signals = append(q.signals, signals)
	return nil
}

func (q *fakeQueue) Present(windows []Window, waits []Semaphore) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.presented++
	return nil
}

func (q *fakeQueue) WaitIdle() error { return nil }

func (q *fakeQueue) submissionCount() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.submissions)
}

func (q *fakeQueue) lastSubmission() []CommandBuffer {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.submissions) == 0 {
		return nil
	}
	return q.submissions[len(q.submissions)-1]
}

func (q *fakeQueue) lastWaits() []Semaphore {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.waits) == 0 {
		return nil
	}
	return q.waits[len(q.waits)-1]
}

type fakeDescriptorPool struct {
	maxSets uint32
	sizes   []vk.DescriptorPoolSize
}

type fakeCommandPool struct{}

func (p *fakeCommandPool) Reset() error { return nil }

type fakeDevice struct {
	name string

	mutex           sync.Mutex
	queues          map[int]*fakeQueue
	semaphores      int
	commandPools    int
	descriptorPools []*fakeDescriptorPool
	waitIdleCalls   int
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{name: name, queues: make(map[int]*fakeQueue)}
}

func (d *fakeDevice) Queue(familyIndex int) (Queue, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	q, ok := d.queues[familyIndex]
	if !ok {
		q = &fakeQueue{family: familyIndex}
		d.queues[familyIndex] = q
	}
	return q, nil
}

func (d *fakeDevice) QueueFamily(flags vk.QueueFlagBits) (int, error) { return 0, nil }

func (d *fakeDevice) NewSemaphore() (Semaphore, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.semaphores++
	return fmt.Sprintf("%s-semaphore-%d", d.name, d.semaphores), nil
}

func (d *fakeDevice) NewCommandPool(familyIndex int) (CommandPool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.commandPools++
	return &fakeCommandPool{}, nil
}

func (d *fakeDevice) NewDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (DescriptorPool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	pool := &fakeDescriptorPool{maxSets: maxSets, sizes: sizes}
	d.descriptorPools = append(d.descriptorPools, pool)
	return pool, nil
}

func (d *fakeDevice) WaitIdle() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.waitIdleCalls++
	return nil
}

type fakeWindow struct {
	device         Device
	visible        bool
	valid          bool
	imageAvailable Semaphore

	acquireErrs []error
	acquires    int
	resizes     int
}

func newFakeWindow(device Device) *fakeWindow {
	return &fakeWindow{device: device, visible: true, valid: true}
}

func (w *fakeWindow) PollEvents(events *core.EventQueue) bool { return false }

func (w *fakeWindow) AcquireNextImage() error {
	w.acquires++
	if len(w.acquireErrs) == 0 {
		return nil
	}
	err := w.acquireErrs[0]
	w.acquireErrs = w.acquireErrs[1:]
	return err
}

func (w *fakeWindow) Resize() { w.resizes++ }

func (w *fakeWindow) ImageAvailableSemaphore() Semaphore { return w.imageAvailable }

func (w *fakeWindow) Visible() bool  { return w.visible }
func (w *fakeWindow) Valid() bool    { return w.valid }
func (w *fakeWindow) Device() Device { return w.device }

// recordBuffers returns a RecordFunc emitting count opaque command buffers.
func recordBuffers(count int) RecordFunc {
	return func(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error {
		for i := 0; i < count; i++ {
			*out = append(*out, fmt.Sprintf("buffer-%d-%d", frame.FrameIndex, i))
		}
		return nil
	}
}

// One device, one presenting command graph: a single task and presentation,
// no threading, submit runs synchronously on the calling goroutine.
func TestSingleGraphRunsSynchronously(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	recordedOn := make(chan struct{}, 1)
	graph := NewCommandGraph(device, 0, 1, window, func(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error {
		*out = append(*out, "solo")
		recordedOn <- struct{}{}
		return nil
	})

	if err := v.AssignRecordAndSubmitTaskAndPresentations([]*CommandGraph{graph}, nil); err != nil {
		t.Fatal(err)
	}

	if len(v.RecordAndSubmitTasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(v.RecordAndSubmitTasks))
	}
	if len(v.Presentations) != 1 {
		t.Fatalf("expected 1 presentation, got %d", len(v.Presentations))
	}

	v.SetupThreading()
	if v.Threading() {
		t.Fatal("threading enabled for a single command graph")
	}

	if !v.AdvanceToNextFrame() {
		t.Fatal("failed to advance to the first frame")
	}
	if err := v.RecordAndSubmit(); err != nil {
		t.Fatal(err)
	}

	// The record callback must already have run, on this goroutine.
	select {
	case <-recordedOn:
	default:
		t.Fatal("record did not run synchronously")
	}

	queue, _ := device.Queue(0)
	fq := queue.(*fakeQueue)
	if got := fq.submissionCount(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}
	if got := len(fq.lastSubmission()); got != 1 {
		t.Fatalf("expected 1 command buffer, got %d", got)
	}

	v.Present()
	presentQueue, _ := device.Queue(1)
	if presentQueue.(*fakeQueue).presented != 1 {
		t.Fatal("presentation did not reach the present queue")
	}

	v.Close()
}

// One device, three command graphs sharing a present family: one task, three
// workers, and each frame's merged command buffer count equals the sum of
// the graphs' individual counts.
func TestMultiGraphThreadedMergesAllBuffers(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	graphs := []*CommandGraph{
		NewCommandGraph(device, 0, 1, window, recordBuffers(1)),
		NewCommandGraph(device, 0, 1, window, recordBuffers(2)),
		NewCommandGraph(device, 0, 1, window, recordBuffers(3)),
	}

	if err := v.AssignRecordAndSubmitTaskAndPresentations(graphs, nil); err != nil {
		t.Fatal(err)
	}
	if len(v.RecordAndSubmitTasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(v.RecordAndSubmitTasks))
	}
	if got := len(v.RecordAndSubmitTasks[0].CommandGraphs); got != 3 {
		t.Fatalf("expected 3 command graphs in the task, got %d", got)
	}

	v.SetupThreading()
	if !v.Threading() {
		t.Fatal("threading not enabled for three command graphs")
	}

	queue, _ := device.Queue(0)
	fq := queue.(*fakeQueue)

	const frames = 5
	for i := 0; i < frames; i++ {
		if !v.AdvanceToNextFrame() {
			t.Fatalf("failed to advance to frame %d", i)
		}
		if err := v.RecordAndSubmit(); err != nil {
			t.Fatal(err)
		}

		if got := fq.submissionCount(); got != i+1 {
			t.Fatalf("frame %d: expected %d submissions, got %d", i, i+1, got)
		}
		if got := len(fq.lastSubmission()); got != 6 {
			t.Fatalf("frame %d: merged %d command buffers, want 6", i, got)
		}
		v.Present()
	}

	v.Close()
}

// Stopping threading while workers are blocked waiting for a frame must make
// them exit and become joinable within a bounded time, whether or not a
// frame was ever signalled.
func TestStopThreadingUnblocksIdleWorkers(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	graphs := []*CommandGraph{
		NewCommandGraph(device, 0, 1, window, recordBuffers(1)),
		NewCommandGraph(device, 0, 1, window, recordBuffers(1)),
	}
	if err := v.AssignRecordAndSubmitTaskAndPresentations(graphs, nil); err != nil {
		t.Fatal(err)
	}

	v.SetupThreading()
	if !v.Threading() {
		t.Fatal("threading not enabled")
	}

	// Give the workers time to block on the frame block. No frame is ever
	// signalled.
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		v.StopThreading()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopThreading deadlocked with idle workers")
	}
}

func TestAcquireRetriesTransientErrors(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)
	window.acquireErrs = []error{core.ErrSwapchainOutOfDate, core.ErrSurfaceLost, nil}

	v := NewViewer()
	v.AddWindow(window)

	if !v.AdvanceToNextFrame() {
		t.Fatal("transient acquire errors must not abort the frame")
	}
	if window.resizes != 2 {
		t.Fatalf("expected 2 swapchain rebuilds, got %d", window.resizes)
	}
	if window.acquires != 3 {
		t.Fatalf("expected 3 acquire attempts, got %d", window.acquires)
	}
}

func TestAcquireAbortsOnFatalError(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)
	window.acquireErrs = []error{errors.New("boom")}

	v := NewViewer()
	v.AddWindow(window)

	if v.AdvanceToNextFrame() {
		t.Fatal("fatal acquire error must abort the frame")
	}
	if window.resizes != 0 {
		t.Fatalf("fatal errors must not rebuild the swapchain, got %d rebuilds", window.resizes)
	}
}

func TestInvalidWindowStopsSessionAndWaitsDevices(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	if !v.Active() {
		t.Fatal("viewer inactive with a valid window")
	}

	window.valid = false
	if v.Active() {
		t.Fatal("viewer active with an invalid window")
	}
	if device.waitIdleCalls == 0 {
		t.Fatal("devices were not waited idle before reporting inactive")
	}
}

func TestFrameEventsReachHandlers(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	var frames []uint64
	v.AddEventHandler(func(context core.EventContext) {
		if context.Type == core.EVENT_CODE_FRAME {
			frames = append(frames, context.Data.(*core.FrameEvent).Stamp.FrameIndex)
		}
	})

	for i := 0; i < 3; i++ {
		if !v.AdvanceToNextFrame() {
			t.Fatalf("failed to advance to frame %d", i)
		}
		v.HandleEvents()
	}

	if len(frames) != 3 {
		t.Fatalf("expected 3 frame events, got %d", len(frames))
	}
	for i, index := range frames {
		if index != uint64(i) {
			t.Fatalf("frame event %d carries index %d", i, index)
		}
	}
}
