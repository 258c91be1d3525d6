package viewer

import (
	"testing"
)

func TestPartitionGroupsByDeviceAndQueueFamily(t *testing.T) {
	deviceA := newFakeDevice("gpu0")
	deviceB := newFakeDevice("gpu1")
	windowA := newFakeWindow(deviceA)
	windowB := newFakeWindow(deviceB)

	v := NewViewer()
	v.AddWindow(windowA)
	v.AddWindow(windowB)

	graphs := []*CommandGraph{
		NewCommandGraph(deviceA, 0, 1, windowA, recordBuffers(1)),
		NewCommandGraph(deviceB, 0, 0, windowB, recordBuffers(1)),
		NewCommandGraph(deviceA, 0, 1, windowA, recordBuffers(1)),
		NewCommandGraph(deviceA, 2, -1, nil, recordBuffers(1)),
	}

	if err := v.AssignRecordAndSubmitTaskAndPresentations(graphs, nil); err != nil {
		t.Fatal(err)
	}

	// Three distinct (device, queue family, present family) groups.
	if len(v.RecordAndSubmitTasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(v.RecordAndSubmitTasks))
	}

	// Devices are ordered by first appearance, so deviceA's groups come first.
	first := v.RecordAndSubmitTasks[0]
	if first.Device != deviceA || len(first.CommandGraphs) != 2 {
		t.Fatalf("first task should hold deviceA's two presenting graphs, got %d graphs", len(first.CommandGraphs))
	}
	second := v.RecordAndSubmitTasks[1]
	if second.Device != deviceA || len(second.CommandGraphs) != 1 {
		t.Fatal("second task should hold deviceA's off-screen graph")
	}
	third := v.RecordAndSubmitTasks[2]
	if third.Device != deviceB || len(third.CommandGraphs) != 1 {
		t.Fatal("third task should hold deviceB's graph")
	}

	// The off-screen group gets no presentation.
	if len(v.Presentations) != 2 {
		t.Fatalf("expected 2 presentations, got %d", len(v.Presentations))
	}
}

func TestPartitionDeduplicatesWindowsInOrder(t *testing.T) {
	device := newFakeDevice("gpu0")
	windowA := newFakeWindow(device)
	windowB := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(windowA)
	v.AddWindow(windowB)

	graphs := []*CommandGraph{
		NewCommandGraph(device, 0, 1, windowA, recordBuffers(1)),
		NewCommandGraph(device, 0, 1, windowB, recordBuffers(1)),
		NewCommandGraph(device, 0, 1, windowA, recordBuffers(1)),
	}

	if err := v.AssignRecordAndSubmitTaskAndPresentations(graphs, nil); err != nil {
		t.Fatal(err)
	}

	if len(v.Presentations) != 1 {
		t.Fatalf("expected 1 presentation, got %d", len(v.Presentations))
	}
	windows := v.Presentations[0].Windows
	if len(windows) != 2 {
		t.Fatalf("expected 2 deduplicated windows, got %d", len(windows))
	}
	if windows[0] != windowA || windows[1] != windowB {
		t.Fatal("windows not kept in first-appearance order")
	}
}

func TestPartitionLinksSubmitAndPresentSemaphores(t *testing.T) {
	device := newFakeDevice("gpu0")
	window := newFakeWindow(device)

	v := NewViewer()
	v.AddWindow(window)

	graph := NewCommandGraph(device, 0, 1, window, recordBuffers(1))
	if err := v.AssignRecordAndSubmitTaskAndPresentations([]*CommandGraph{graph}, nil); err != nil {
		t.Fatal(err)
	}

	task := v.RecordAndSubmitTasks[0]
	presentation := v.Presentations[0]
	if len(task.SignalSemaphores) != 1 || len(presentation.WaitSemaphores) != 1 {
		t.Fatal("render-finished semaphore missing from task or presentation")
	}
	if task.SignalSemaphores[0] != presentation.WaitSemaphores[0] {
		t.Fatal("task signal and presentation wait must share one semaphore")
	}
}

func TestPartitionIsDeterministic(t *testing.T) {
	deviceA := newFakeDevice("gpu0")
	deviceB := newFakeDevice("gpu1")

	build := func() *Viewer {
		v := NewViewer()
		graphs := []*CommandGraph{
			NewCommandGraph(deviceB, 1, -1, nil, recordBuffers(1)),
			NewCommandGraph(deviceA, 0, -1, nil, recordBuffers(1)),
			NewCommandGraph(deviceB, 0, -1, nil, recordBuffers(1)),
			NewCommandGraph(deviceA, 2, -1, nil, recordBuffers(1)),
		}
		if err := v.AssignRecordAndSubmitTaskAndPresentations(graphs, nil); err != nil {
			t.Fatal(err)
		}
		return v
	}

	a := build()
	b := build()
	if len(a.RecordAndSubmitTasks) != len(b.RecordAndSubmitTasks) {
		t.Fatal("task counts differ between identical runs")
	}
	for i := range a.RecordAndSubmitTasks {
		ta, tb := a.RecordAndSubmitTasks[i], b.RecordAndSubmitTasks[i]
		if ta.Device != tb.Device {
			t.Fatalf("task %d bound to different devices across runs", i)
		}
		if len(ta.CommandGraphs) != len(tb.CommandGraphs) {
			t.Fatalf("task %d holds different graph counts across runs", i)
		}
	}
}

func TestPartitionToleratesNilDevice(t *testing.T) {
	v := NewViewer()
	graph := NewCommandGraph(nil, 0, -1, nil, recordBuffers(1))
	if err := v.AssignRecordAndSubmitTaskAndPresentations([]*CommandGraph{graph}, nil); err != nil {
		t.Fatal(err)
	}
	if len(v.RecordAndSubmitTasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(v.RecordAndSubmitTasks))
	}
	if v.RecordAndSubmitTasks[0].Queue != nil {
		t.Fatal("nil device must not produce a queue")
	}
}
