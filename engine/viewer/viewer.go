package viewer

import (
	"sync"
	"time"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/threading"
)

// Viewer orchestrates the frame loop across one or more windows, devices and
// submission tasks: poll events, advance the frame, acquire swapchain images,
// record and submit every task's command graphs (optionally across worker
// goroutines) and present the results.
type Viewer struct {
	Windows              []Window
	RecordAndSubmitTasks []*RecordAndSubmitTask
	Presentations        []*Presentation

	events        *core.EventQueue
	eventHandlers []core.FnOnEvent

	status     *threading.ActivityStatus
	frameStamp core.FrameStamp
	hasFrame   bool

	clock         *core.Clock
	lastFrameTime float64

	threading           bool
	frameBlock          *threading.FrameBlock
	submissionCompleted *threading.Barrier
	workers             sync.WaitGroup

	closed bool
}

func NewViewer() *Viewer {
	core.MetricsInitialize()

	clock := core.NewClock()
	clock.Start()

	return &Viewer{
		events: core.NewEventQueue(),
		status: threading.NewActivityStatus(),
		clock:  clock,
	}
}

func (v *Viewer) AddWindow(window Window) {
	v.Windows = append(v.Windows, window)
}

// AddEventHandler registers a handler invoked by HandleEvents for every
// queued event, in registration order.
func (v *Viewer) AddEventHandler(handler core.FnOnEvent) {
	v.eventHandlers = append(v.eventHandlers, handler)
}

// FrameStamp returns the stamp of the frame currently being driven.
func (v *Viewer) FrameStamp() core.FrameStamp {
	return v.frameStamp
}

// Close ends the session: the activity status flips, worker goroutines are
// joined and in-flight device work is waited upon before Active reports
// false to the caller's main loop.
func (v *Viewer) Close() {
	v.closed = true
	v.status.Set(false)
	v.StopThreading()
}

// Active reports whether the caller should keep driving frames. Once a
// window becomes invalid or Close was called, every device is waited idle
// before false is returned, so teardown never races in-flight GPU work.
func (v *Viewer) Active() bool {
	active := !v.closed
	if active {
		for _, window := range v.Windows {
			if !window.Valid() {
				active = false
				break
			}
		}
	}

	if !active {
		v.DeviceWaitIdle()
		return false
	}
	return true
}

// DeviceWaitIdle waits for each distinct device of the viewer's windows.
func (v *Viewer) DeviceWaitIdle() {
	seen := make(map[Device]bool)
	for _, window := range v.Windows {
		device := window.Device()
		if device == nil || seen[device] {
			continue
		}
		seen[device] = true
		if err := device.WaitIdle(); err != nil {
			core.LogWarn("device wait idle failed: %s", err.Error())
		}
	}
}

// PollEvents polls every window for pending events, optionally discarding
// whatever is still queued from previous frames.
func (v *Viewer) PollEvents(discardPreviousEvents bool) bool {
	if discardPreviousEvents {
		v.events.Clear()
	}

	polled := false
	for _, window := range v.Windows {
		if window.PollEvents(v.events) {
			polled = true
		}
	}
	return polled
}

// Advance moves to the next frame without touching any swapchain: events are
// polled, the frame stamp advances and a frame event is queued. Useful for
// off-screen rendering loops.
func (v *Viewer) Advance() {
	v.PollEvents(true)
	v.advanceFrameStamp()
}

// AdvanceToNextFrame polls events, acquires the next swapchain image of
// every visible window and advances the frame stamp. It returns false when
// the session is no longer active or acquisition failed, in which case the
// caller must stop driving frames.
func (v *Viewer) AdvanceToNextFrame() bool {
	if !v.Active() {
		return false
	}

	v.PollEvents(true)

	if !v.acquireNextFrame() {
		return false
	}

	v.advanceFrameStamp()
	return true
}

func (v *Viewer) advanceFrameStamp() {
	now := time.Now()
	if v.hasFrame {
		v.frameStamp = v.frameStamp.Next(now)
	} else {
		v.frameStamp = core.FrameStamp{Time: now, FrameIndex: 0}
		v.hasFrame = true
	}

	v.events.Push(core.EventContext{
		Type: core.EVENT_CODE_FRAME,
		Data: &core.FrameEvent{Stamp: v.frameStamp},
	})
}

// acquireNextFrame acquires the next swapchain image for every visible
// window. Transient errors trigger a swapchain rebuild and a retry of the
// same window; any other failure aborts that window's acquisition for this
// frame and is reported, not retried.
func (v *Viewer) acquireNextFrame() bool {
	if v.closed {
		return false
	}

	ok := true
	for _, window := range v.Windows {
		if !window.Visible() {
			continue
		}

		for {
			err := window.AcquireNextImage()
			if err == nil {
				break
			}
			if core.IsTransientAcquireError(err) {
				// Force a swapchain rebuild, then retry the acquisition.
				window.Resize()
				continue
			}
			core.LogWarn("window acquire next image failed: %s", err.Error())
			ok = false
			break
		}
	}
	return ok
}

// HandleEvents dispatches every queued event to the registered handlers.
func (v *Viewer) HandleEvents() {
	for _, event := range v.events.Drain() {
		for _, handler := range v.eventHandlers {
			handler(event)
		}
	}
}

// Update runs the per-frame upkeep that precedes recording: database pagers
// merge the resources their workers finished loading.
func (v *Viewer) Update() {
	for _, task := range v.RecordAndSubmitTasks {
		if task.Pager != nil {
			task.Pager.UpdateSceneGraph(v.frameStamp)
		}
	}
}

// RecordAndSubmit records and submits every task for the current frame. With
// threading enabled the frame stamp is published to the workers and the
// caller blocks on the submission-completion barrier; otherwise every task
// runs synchronously on the calling goroutine.
func (v *Viewer) RecordAndSubmit() error {
	if v.threading {
		v.frameBlock.Set(v.frameStamp)
		v.submissionCompleted.ArriveAndWait()
		return nil
	}

	for _, task := range v.RecordAndSubmitTasks {
		if err := task.Submit(v.frameStamp); err != nil {
			return err
		}
	}
	return nil
}

// Present presents every presentation's windows for the current frame.
func (v *Viewer) Present() {
	for _, presentation := range v.Presentations {
		if err := presentation.Present(); err != nil {
			core.LogWarn("presentation failed: %s", err.Error())
		}
	}
}

// SetupThreading spawns one worker goroutine per command graph, unless the
// viewer drives at most one graph in total, in which case everything keeps
// running synchronously on the calling goroutine. The thread topology is
// fixed for the whole session: workers are spun up once here and torn down
// once by StopThreading.
func (v *Viewer) SetupThreading() {
	v.StopThreading()

	numValidTasks := 0
	numCommandGraphs := 0
	for _, task := range v.RecordAndSubmitTasks {
		if len(task.CommandGraphs) >= 1 {
			numValidTasks++
		}
		numCommandGraphs += len(task.CommandGraphs)
	}

	// No point threading a single command graph.
	if numCommandGraphs <= 1 {
		return
	}

	core.LogDebug("viewer setting up threading: %d tasks, %d command graphs", numValidTasks, numCommandGraphs)

	// A previous StopThreading leaves the status inactive; re-arm it for the
	// new workers as long as the session itself is still open.
	if !v.closed {
		v.status.Set(true)
	}

	v.threading = true
	v.frameBlock = threading.NewFrameBlock(v.status)
	v.submissionCompleted = threading.NewBarrier(1 + numValidTasks)

	for _, task := range v.RecordAndSubmitTasks {
		switch {
		case len(task.CommandGraphs) == 1:
			// A task with a single command graph keeps its goroutine simple.
			v.spawn(&soloWorker{
				task:       task,
				frames:     v.frameBlock,
				submission: v.submissionCompleted,
			})

		case len(task.CommandGraphs) > 1:
			// Multiple command graphs in a single task: one goroutine per
			// graph, the first acting as the primary.
			shared := newSharedRecordState(task, v.frameBlock, v.submissionCompleted, len(task.CommandGraphs))
			for i, cg := range task.CommandGraphs {
				if i == 0 {
					v.spawn(&primaryWorker{shared: shared, graph: cg})
				} else {
					v.spawn(&secondaryWorker{shared: shared, graph: cg})
				}
			}
		}
	}
}

// Threading reports whether worker goroutines currently drive the tasks.
func (v *Viewer) Threading() bool {
	return v.threading
}

// StopThreading flips the activity status, force-wakes every worker blocked
// on the frame block so it can observe the shutdown, and joins them all.
func (v *Viewer) StopThreading() {
	if !v.threading {
		return
	}
	v.threading = false

	core.LogDebug("viewer stopping threading")

	v.status.Set(false)
	v.frameBlock.Wake()
	v.workers.Wait()

	v.frameBlock = nil
	v.submissionCompleted = nil
}

func (v *Viewer) spawn(w worker) {
	v.workers.Add(1)
	go func() {
		defer v.workers.Done()
		w.run()
	}()
}

// Run drives the main loop until the session ends: poll and advance, handle
// events, update pagers, record and submit, present.
func (v *Viewer) Run() error {
	for v.Active() {
		if !v.AdvanceToNextFrame() {
			break
		}

		v.clock.Update()
		frameStart := v.clock.ElapsedSeconds()

		v.HandleEvents()
		v.Update()
		if err := v.RecordAndSubmit(); err != nil {
			return err
		}
		v.Present()

		v.clock.Update()
		core.MetricsUpdate(v.clock.ElapsedSeconds() - frameStart)
		v.lastFrameTime = v.clock.ElapsedSeconds()
	}
	return nil
}
