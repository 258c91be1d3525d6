package threading

import "sync/atomic"

// ActivityStatus broadcasts "session still active" to every worker goroutine.
// It is created at session start and flipped to false exactly once at
// shutdown; it must outlive every goroutine that may read it.
type ActivityStatus struct {
	active atomic.Bool
}

func NewActivityStatus() *ActivityStatus {
	s := &ActivityStatus{}
	s.active.Store(true)
	return s
}

func (s *ActivityStatus) Set(active bool) {
	s.active.Store(active)
}

func (s *ActivityStatus) Active() bool {
	return s.active.Load()
}
