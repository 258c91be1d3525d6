package viewer

import (
	"sync"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/threading"
)

// worker is one frame-loop goroutine with a fixed role, constructed once
// during SetupThreading and handed only the state it needs.
type worker interface {
	run()
}

// soloWorker drives a task that owns a single command graph: on each frame it
// runs the task's whole submit protocol itself.
type soloWorker struct {
	task       *RecordAndSubmitTask
	frames     *threading.FrameBlock
	submission *threading.Barrier
}

func (w *soloWorker) run() {
	_, generation := w.frames.Observe()
	for {
		stamp, next, ok := w.frames.WaitForChange(generation)
		if !ok {
			w.submission.ArriveAndDrop()
			return
		}
		generation = next

		if err := w.task.Submit(stamp); err != nil {
			core.LogError("record and submit task failed: %s", err.Error())
		}
		w.submission.ArriveAndWait()
	}
}

// sharedRecordState is shared between the worker goroutines of one
// multi-graph task: two intra-task barriers gate the record phase, and the
// accumulator merges each goroutine's locally recorded command buffers.
type sharedRecordState struct {
	task       *RecordAndSubmitTask
	frames     *threading.FrameBlock
	submission *threading.Barrier

	recordStart     *threading.Barrier
	recordCompleted *threading.Barrier

	mutex    sync.Mutex
	recorded []CommandBuffer
}

func newSharedRecordState(task *RecordAndSubmitTask, frames *threading.FrameBlock, submission *threading.Barrier, numWorkers int) *sharedRecordState {
	return &sharedRecordState{
		task:            task,
		frames:          frames,
		submission:      submission,
		recordStart:     threading.NewBarrier(numWorkers),
		recordCompleted: threading.NewBarrier(numWorkers),
	}
}

func (s *sharedRecordState) add(commandBuffers []CommandBuffer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recorded = append(s.recorded, commandBuffers...)
}

func (s *sharedRecordState) take() []CommandBuffer {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	recorded := s.recorded
	s.recorded = nil
	return recorded
}

// primaryWorker records its own command graph like the secondaries, but also
// starts the task each frame and alone submits the merged command buffer
// list once the record-completed barrier has cleared.
type primaryWorker struct {
	shared *sharedRecordState
	graph  *CommandGraph
}

func (w *primaryWorker) run() {
	_, generation := w.shared.frames.Observe()
	for {
		stamp, next, ok := w.shared.frames.WaitForChange(generation)
		if !ok {
			w.shared.submission.ArriveAndDrop()
			return
		}
		generation = next

		w.shared.task.Start()
		w.shared.recordStart.ArriveAndWait()

		var local []CommandBuffer
		if err := w.graph.Record(&local, stamp, w.shared.task.Pager); err != nil {
			core.LogError("command graph %s record failed: %s", w.graph.ID, err.Error())
		}
		w.shared.add(local)

		w.shared.recordCompleted.ArriveAndWait()

		// Only full record-and-append passes get here: the barrier above
		// gates submission on every participant.
		if err := w.shared.task.Finish(w.shared.take()); err != nil {
			core.LogError("record and submit task failed: %s", err.Error())
		}
		w.shared.submission.ArriveAndWait()
	}
}

// secondaryWorker records one command graph per frame and appends the result
// to the task's shared accumulator.
type secondaryWorker struct {
	shared *sharedRecordState
	graph  *CommandGraph
}

func (w *secondaryWorker) run() {
	_, generation := w.shared.frames.Observe()
	for {
		stamp, next, ok := w.shared.frames.WaitForChange(generation)
		if !ok {
			return
		}
		generation = next

		w.shared.recordStart.ArriveAndWait()

		var local []CommandBuffer
		if err := w.graph.Record(&local, stamp, w.shared.task.Pager); err != nil {
			core.LogError("command graph %s record failed: %s", w.graph.ID, err.Error())
		}
		w.shared.add(local)

		w.shared.recordCompleted.ArriveAndWait()
	}
}
