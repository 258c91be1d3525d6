package core

import (
	"testing"
	"time"
)

func TestEventQueueDrainPreservesOrder(t *testing.T) {
	eq := NewEventQueue()
	eq.Push(EventContext{Type: EVENT_CODE_RESIZED})
	eq.Push(EventContext{Type: EVENT_CODE_FRAME})
	eq.Push(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})

	events := eq.Drain()
	if len(events) != 3 {
		t.Fatalf("drained %d events, want 3", len(events))
	}
	want := []SystemEventCode{EVENT_CODE_RESIZED, EVENT_CODE_FRAME, EVENT_CODE_APPLICATION_QUIT}
	for i, event := range events {
		if event.Type != want[i] {
			t.Fatalf("event %d has type %d, want %d", i, event.Type, want[i])
		}
	}
	if eq.Len() != 0 {
		t.Fatalf("Len() = %d after drain, want 0", eq.Len())
	}
}

func TestEventQueueDropsOldestWhenFull(t *testing.T) {
	eq := NewEventQueue()
	for i := 0; i < defaultEventQueueSize+1; i++ {
		eq.Push(EventContext{Type: EVENT_CODE_FRAME, Data: i})
	}
	if eq.Len() != defaultEventQueueSize {
		t.Fatalf("Len() = %d, want %d", eq.Len(), defaultEventQueueSize)
	}

	events := eq.Drain()
	if events[0].Data.(int) != 1 {
		t.Fatalf("oldest surviving event is %v, want 1", events[0].Data)
	}
}

func TestEventQueueClear(t *testing.T) {
	eq := NewEventQueue()
	eq.Push(EventContext{Type: EVENT_CODE_FRAME})
	eq.Push(EventContext{Type: EVENT_CODE_FRAME})
	eq.Clear()
	if eq.Len() != 0 {
		t.Fatalf("Len() = %d after clear, want 0", eq.Len())
	}
}

func TestFrameStampAdvances(t *testing.T) {
	start := time.Now()
	stamp := FrameStamp{Time: start}

	next := stamp.Next(start.Add(16 * time.Millisecond))
	if next.FrameIndex != 1 {
		t.Fatalf("FrameIndex = %d, want 1", next.FrameIndex)
	}
	if !next.Time.After(stamp.Time) {
		t.Fatal("frame time did not advance")
	}

	// The previous stamp is untouched.
	if stamp.FrameIndex != 0 {
		t.Fatalf("original stamp mutated, FrameIndex = %d", stamp.FrameIndex)
	}
}
