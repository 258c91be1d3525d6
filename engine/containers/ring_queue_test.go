package containers

import "testing"

func TestRingQueueFIFOOrder(t *testing.T) {
	rq := NewRingQueue(4)
	for i := 0; i < 4; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if !rq.IsFull() {
		t.Fatal("queue should be full")
	}
	if err := rq.Enqueue(99); err == nil {
		t.Fatal("enqueue on a full queue must fail")
	}

	for i := 0; i < 4; i++ {
		v, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if v.(int) != i {
			t.Fatalf("dequeued %v, want %d", v, i)
		}
	}
	if !rq.IsEmpty() {
		t.Fatal("queue should be empty")
	}
	if _, err := rq.Dequeue(); err == nil {
		t.Fatal("dequeue on an empty queue must fail")
	}
}

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue(3)
	for i := 0; i < 10; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatal(err)
		}
		v, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if v.(int) != i {
			t.Fatalf("dequeued %v, want %d", v, i)
		}
	}
	if rq.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", rq.Len())
	}
}

func TestRingQueuePeekDoesNotConsume(t *testing.T) {
	rq := NewRingQueue(2)
	rq.Enqueue("head")
	rq.Enqueue("tail")

	v, err := rq.Peek()
	if err != nil {
		t.Fatal(err)
	}
	if v.(string) != "head" {
		t.Fatalf("Peek() = %v, want head", v)
	}
	if rq.Len() != 2 {
		t.Fatalf("Len() = %d after Peek, want 2", rq.Len())
	}
}
