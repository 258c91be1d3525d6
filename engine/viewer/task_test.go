package viewer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/vortex/engine/core"
)

func TestTaskSubmitClearsBuffersBetweenFrames(t *testing.T) {
	device := newFakeDevice("gpu0")
	queue, _ := device.Queue(0)
	fq := queue.(*fakeQueue)

	task := NewRecordAndSubmitTask(device)
	task.Queue = queue
	task.CommandGraphs = []*CommandGraph{
		NewCommandGraph(device, 0, -1, nil, recordBuffers(2)),
	}

	stamp := core.FrameStamp{}
	for i := 0; i < 3; i++ {
		if err := task.Submit(stamp); err != nil {
			t.Fatal(err)
		}
		stamp = stamp.Next(stamp.Time)
	}

	if got := fq.submissionCount(); got != 3 {
		t.Fatalf("expected 3 submissions, got %d", got)
	}
	for i := 0; i < 3; i++ {
		if got := len(fq.submissions[i]); got != 2 {
			t.Fatalf("submission %d carries %d buffers, want 2 (list not cleared?)", i, got)
		}
	}
}

func TestTaskRecordPreservesGraphOrder(t *testing.T) {
	device := newFakeDevice("gpu0")

	named := func(name string) RecordFunc {
		return func(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error {
			*out = append(*out, name)
			return nil
		}
	}

	task := NewRecordAndSubmitTask(device)
	task.CommandGraphs = []*CommandGraph{
		NewCommandGraph(device, 0, -1, nil, named("first")),
		NewCommandGraph(device, 0, -1, nil, named("second")),
		NewCommandGraph(device, 0, -1, nil, named("third")),
	}

	task.Start()
	if err := task.Record(core.FrameStamp{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"first", "second", "third"}
	if len(task.commandBuffers) != len(want) {
		t.Fatalf("recorded %d buffers, want %d", len(task.commandBuffers), len(want))
	}
	for i, name := range want {
		if task.commandBuffers[i] != name {
			t.Fatalf("buffer %d = %v, want %q", i, task.commandBuffers[i], name)
		}
	}
}

func TestTaskRecordStopsAtFirstError(t *testing.T) {
	device := newFakeDevice("gpu0")
	boom := errors.New("record failed")

	recorded := 0
	counting := func(fail bool) RecordFunc {
		return func(out *[]CommandBuffer, frame core.FrameStamp, pager *DatabasePager) error {
			if fail {
				return boom
			}
			recorded++
			return nil
		}
	}

	task := NewRecordAndSubmitTask(device)
	task.CommandGraphs = []*CommandGraph{
		NewCommandGraph(device, 0, -1, nil, counting(false)),
		NewCommandGraph(device, 0, -1, nil, counting(true)),
		NewCommandGraph(device, 0, -1, nil, counting(false)),
	}

	task.Start()
	if err := task.Record(core.FrameStamp{}); !errors.Is(err, boom) {
		t.Fatalf("Record() = %v, want %v", err, boom)
	}
	if recorded != 1 {
		t.Fatalf("recorded %d graphs before the failure, want 1", recorded)
	}
}

// Submissions touching a window's swapchain images must wait on that
// window's acquire semaphore, otherwise the GPU may write to an image
// before acquisition has signalled.
func TestTaskSubmitWaitsOnWindowAcquireSemaphores(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)
	window.imageAvailable = "gpu0-image-available"

	v := NewViewer()
	graph := NewCommandGraph(device, 0, 1, window, recordBuffers(1))
	if err := v.AssignRecordAndSubmitTaskAndPresentations([]*CommandGraph{graph}, nil); err != nil {
		t.Fatal(err)
	}

	task := v.RecordAndSubmitTasks[0]
	if err := task.Submit(core.FrameStamp{}); err != nil {
		t.Fatal(err)
	}

	queue, _ := device.Queue(0)
	waits := queue.(*fakeQueue).lastWaits()
	found := false
	for _, sem := range waits {
		if sem == window.imageAvailable {
			found = true
		}
	}
	if !found {
		t.Fatalf("submission waits %v do not include the window's acquire semaphore", waits)
	}

	// A window without an acquire semaphore contributes no wait.
	bare := newFakeWindow(device)
	task.Windows = []Window{bare}
	if err := task.Submit(core.FrameStamp{}); err != nil {
		t.Fatal(err)
	}
	if waits := queue.(*fakeQueue).lastWaits(); len(waits) != 0 {
		t.Fatalf("submission waits %v, want none for a window without a semaphore", waits)
	}
}

func TestTaskFinishWithoutQueueIsNoop(t *testing.T) {
	task := NewRecordAndSubmitTask(nil)
	if err := task.Finish([]CommandBuffer{"orphan"}); err != nil {
		t.Fatal(err)
	}
}

func TestPresentationWithoutQueueIsNoop(t *testing.T) {
	p := &Presentation{}
	if err := p.Present(); err != nil {
		t.Fatal(err)
	}
}
