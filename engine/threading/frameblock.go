package threading

import (
	"sync"

	"github.com/spaghettifunk/vortex/engine/core"
)

// FrameBlock hands the current frame stamp to worker goroutines. It keeps two
// logically paired pieces: a value cell holding the latest stamp together
// with a change counter, and a monitor (mutex + condition variable) used only
// for blocking and waking readers.
//
// Exactly one goroutine, the orchestrator, writes via Set. Readers block in
// WaitForChange until the counter moves past the generation they last
// observed, or until the session goes inactive.
type FrameBlock struct {
	status *ActivityStatus

	mu         sync.Mutex
	cond       *sync.Cond
	current    core.FrameStamp
	generation uint64
}

func NewFrameBlock(status *ActivityStatus) *FrameBlock {
	fb := &FrameBlock{status: status}
	fb.cond = sync.NewCond(&fb.mu)
	return fb
}

// Observe returns the current stamp and its generation. Workers call this once
// before entering their loop to establish the "last seen" generation.
func (fb *FrameBlock) Observe() (core.FrameStamp, uint64) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.current, fb.generation
}

// Set stores the stamp for the new frame, advances the change counter and
// wakes every blocked reader.
func (fb *FrameBlock) Set(stamp core.FrameStamp) {
	fb.mu.Lock()
	fb.current = stamp
	fb.generation++
	fb.mu.Unlock()
	fb.cond.Broadcast()
}

// Wake forces blocked readers to re-check the activity status without
// publishing a new frame. Used purely to unblock goroutines during shutdown.
//
// The monitor must be held across the broadcast: the activity flag lives
// outside the mutex, so a reader may have evaluated the wait condition but
// not yet parked on the condition variable. Taking the lock makes Wake block
// until that reader is parked and can receive the broadcast.
func (fb *FrameBlock) Wake() {
	fb.mu.Lock()
	fb.cond.Broadcast()
	fb.mu.Unlock()
}

// WaitForChange blocks the caller until the stored stamp has moved past
// lastGeneration or the session goes inactive. It returns the new stamp, its
// generation and true in the former case; false in the latter, signalling the
// caller to exit its loop.
func (fb *FrameBlock) WaitForChange(lastGeneration uint64) (core.FrameStamp, uint64, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for fb.generation == lastGeneration && fb.status.Active() {
		fb.cond.Wait()
	}
	if !fb.status.Active() {
		return fb.current, fb.generation, false
	}
	return fb.current, fb.generation, true
}
