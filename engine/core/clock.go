package core

import "time"

// FrameStamp identifies a single rendered frame. A new value replaces the
// previous one each frame and is never mutated afterwards; every thread may
// read the current stamp concurrently.
type FrameStamp struct {
	Time       time.Time
	FrameIndex uint64
}

// Next derives the stamp for the following frame.
func (fs FrameStamp) Next(t time.Time) FrameStamp {
	return FrameStamp{Time: t, FrameIndex: fs.FrameIndex + 1}
}

type Clock struct {
	startTime float64
	elapsed   float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.startTime != 0 {
		c.elapsed = float64(time.Now().UnixNano()) - c.startTime
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = float64(time.Now().UnixNano())
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = 0
}

// Elapsed returns the elapsed time in nanoseconds.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// ElapsedSeconds returns the elapsed time in seconds.
func (c *Clock) ElapsedSeconds() float64 {
	return c.elapsed / float64(time.Second)
}
