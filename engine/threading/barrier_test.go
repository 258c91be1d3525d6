package threading

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierReleasesAllPartiesTogether(t *testing.T) {
	const parties = 4
	b := NewBarrier(parties)

	var released atomic.Int32
	var wg sync.WaitGroup

	// All parties but one arrive; none of them may get through.
	wg.Add(parties - 1)
	for i := 0; i < parties-1; i++ {
		go func() {
			defer wg.Done()
			b.ArriveAndWait()
			released.Add(1)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	if got := released.Load(); got != 0 {
		t.Fatalf("%d parties released before the group was complete", got)
	}

	// The last arrival releases everyone.
	b.ArriveAndWait()
	wg.Wait()
	if got := released.Load(); got != parties-1 {
		t.Fatalf("expected %d released parties, got %d", parties-1, got)
	}
}

func TestBarrierReusableAcrossGenerations(t *testing.T) {
	const parties = 3
	const generations = 50
	b := NewBarrier(parties)

	var wg sync.WaitGroup
	wg.Add(parties)
	for i := 0; i < parties; i++ {
		go func() {
			defer wg.Done()
			for g := 0; g < generations; g++ {
				b.ArriveAndWait()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("barrier deadlocked while cycling generations")
	}
}

func TestBarrierArriveAndDropReducesPartyCount(t *testing.T) {
	b := NewBarrier(3)

	var released atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			b.ArriveAndWait()
			released.Add(1)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	if got := released.Load(); got != 0 {
		t.Fatalf("%d parties released before the drop", got)
	}

	// The third party leaves permanently; its arrival completes the current
	// generation.
	b.ArriveAndDrop()
	wg.Wait()

	if got := b.Parties(); got != 2 {
		t.Fatalf("expected 2 remaining parties, got %d", got)
	}

	// A subsequent generation needs only the reduced count to release.
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			b.ArriveAndWait()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reduced barrier did not release with the remaining parties")
	}
}
