package core

import (
	"sync"

	"github.com/spaghettifunk/vortex/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * se := context.Data.(*SystemEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x02

	// A new frame has been advanced by the viewer.
	/* Context usage:
	 * fe := context.Data.(*FrameEvent)
	 */
	EVENT_CODE_FRAME SystemEventCode = 0x03

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// FrameEvent is pushed onto the event queue every time the viewer advances
// to a new frame.
type FrameEvent struct {
	Stamp FrameStamp
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type FnOnEvent func(context EventContext)

const defaultEventQueueSize = 512

// EventQueue collects the events polled from every window plus the per-frame
// events, and hands them to the registered handlers once per frame.
type EventQueue struct {
	mutex sync.Mutex
	queue *containers.RingQueue
}

func NewEventQueue() *EventQueue {
	return &EventQueue{
		queue: containers.NewRingQueue(defaultEventQueueSize),
	}
}

// Push appends an event. When the queue is full the oldest event is dropped
// so window polling can never block.
func (eq *EventQueue) Push(event EventContext) {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	if eq.queue.IsFull() {
		if _, err := eq.queue.Dequeue(); err == nil {
			LogWarn("event queue full, dropping oldest event")
		}
	}
	if err := eq.queue.Enqueue(event); err != nil {
		LogError("failed to enqueue event: %s", err.Error())
	}
}

// Drain removes and returns every queued event in arrival order.
func (eq *EventQueue) Drain() []EventContext {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	events := make([]EventContext, 0, eq.queue.Len())
	for !eq.queue.IsEmpty() {
		value, err := eq.queue.Dequeue()
		if err != nil {
			break
		}
		events = append(events, value.(EventContext))
	}
	return events
}

// Clear discards all queued events.
func (eq *EventQueue) Clear() {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	for !eq.queue.IsEmpty() {
		if _, err := eq.queue.Dequeue(); err != nil {
			break
		}
	}
}

// Len returns the number of queued events.
func (eq *EventQueue) Len() int {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()
	return eq.queue.Len()
}
