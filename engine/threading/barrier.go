package threading

import "sync"

// Barrier is a reusable rendezvous for a fixed group of goroutines. A
// generation completes once every party has arrived; all waiters of that
// generation are then released together and the barrier resets for the next
// one, without reallocation, for an unbounded number of frames.
//
// The party count is fixed at construction and only ever decreases, via
// ArriveAndDrop, when a goroutine permanently leaves the group.
type Barrier struct {
	mu   sync.Mutex
	cond *sync.Cond

	// parties for future generations; never increases
	parties int
	// parties expected by the generation currently forming
	expected   int
	arrived    int
	generation uint64
}

// NewBarrier creates a barrier for the given party count. The count must be
// at least 1.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	b := &Barrier{parties: parties, expected: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// ArriveAndWait blocks the caller until every party has arrived in the
// current generation, then releases all of them together.
func (b *Barrier) ArriveAndWait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	generation := b.generation
	b.arriveLocked()
	for generation == b.generation {
		b.cond.Wait()
	}
}

// ArriveAndDrop arrives at the current generation without waiting for it to
// complete and permanently reduces the party count for subsequent
// generations. Used by a goroutine that legitimately finishes the session and
// will never arrive again.
func (b *Barrier) ArriveAndDrop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parties > 0 {
		b.parties--
	}
	b.arriveLocked()
}

// Parties returns the party count for future generations.
func (b *Barrier) Parties() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parties
}

func (b *Barrier) arriveLocked() {
	b.arrived++
	if b.arrived >= b.expected {
		b.arrived = 0
		b.expected = b.parties
		b.generation++
		b.cond.Broadcast()
	}
}
