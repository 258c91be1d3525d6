package systems

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestJobSystemRejectsBadConfiguration(t *testing.T) {
	if _, err := NewJobSystem(0, 4); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("NewJobSystem(0, 4) = %v, want ErrNoWorkers", err)
	}
	if _, err := NewJobSystem(2, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("NewJobSystem(2, -1) = %v, want ErrNegativeChannelSize", err)
	}
}

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatal(err)
	}

	const jobs = 50
	var mu sync.Mutex
	done := 0

	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		js.Submit(JobTask{
			OnStart: func(params interface{}, results chan<- interface{}) error {
				return nil
			},
			OnComplete: func(results <-chan interface{}) {
				mu.Lock()
				done++
				mu.Unlock()
			},
			OnCompletionCallback: wg.Done,
		})
	}
	wg.Wait()

	if done != jobs {
		t.Fatalf("completed %d jobs, want %d", done, jobs)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestJobSystemRoutesFailures(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	failed := make(chan struct{}, 1)
	completed := make(chan struct{}, 1)
	js.Submit(JobTask{
		ID: "doomed",
		OnStart: func(params interface{}, results chan<- interface{}) error {
			return errors.New("boom")
		},
		OnComplete: func(results <-chan interface{}) { completed <- struct{}{} },
		OnFailure:  func(results <-chan interface{}) { failed <- struct{}{} },
	})

	select {
	case <-failed:
	case <-completed:
		t.Fatal("failed job reached OnComplete")
	case <-time.After(5 * time.Second):
		t.Fatal("failure callback never ran")
	}
}

func TestJobSystemPassesResults(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	got := make(chan interface{}, 1)
	js.Submit(JobTask{
		InputParams: 21,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			results <- params.(int) * 2
			return nil
		},
		OnComplete: func(results <-chan interface{}) {
			got <- <-results
		},
	})

	select {
	case v := <-got:
		if v.(int) != 42 {
			t.Fatalf("result = %v, want 42", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job result never arrived")
	}
}
