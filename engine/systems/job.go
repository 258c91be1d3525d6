package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/vortex/engine/core"
)

// JobTask is one unit of background work. OnStart runs on a worker goroutine;
// the optional callbacks run on the same worker after it returns.
type JobTask struct {
	ID          string
	InputParams interface{}
	OnStart     func(params interface{}, results chan<- interface{}) error
	OnComplete  func(results <-chan interface{})
	OnFailure   func(results <-chan interface{})
	// Called last regardless of the job outcome.
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				results := make(chan interface{}, 1)
				if err := job.OnStart(job.InputParams, results); err != nil {
					core.LogError("job %s failed: %s", job.ID, err.Error())
					if job.OnFailure != nil {
						job.OnFailure(results)
					}
				} else if job.OnComplete != nil {
					job.OnComplete(results)
				}

				if job.OnCompletionCallback != nil {
					job.OnCompletionCallback()
				}
			}
		}()
	}
}

// Shutdown drains the queue and stops every worker.
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking adds work and returns immediately, even when the queue
// is full.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go js.Submit(jt)
}

// Submit queues the provided job for execution, blocking while the queue is
// full.
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}
