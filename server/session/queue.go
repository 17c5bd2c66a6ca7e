package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

// shotJob is one detected shot queued for coaching analysis. Shots are
// independent once segmented, so they fan out across the worker pool
// to hide the coaching model's network latency.
type shotJob struct {
	ShotNumber int
	Interval   models.ShotInterval
	Frames     []models.ShotFrame
	Metrics    models.MetricVector
	ResultChan chan *shotResult
	StartTime  time.Time
}

type shotResult struct {
	Record *models.ShotRecord
	Error  error
}

// workQueue is a bounded worker pool over shot jobs.
type workQueue struct {
	items      chan *shotJob
	workers    int
	workerFunc func(*shotJob)
	wg         sync.WaitGroup
	shutdown   chan struct{}
	isRunning  bool
	mutex      sync.RWMutex
}

func newWorkQueue(queueSize, workers int, workerFunc func(*shotJob)) *workQueue {
	queue := &workQueue{
		items:      make(chan *shotJob, queueSize),
		workers:    workers,
		workerFunc: workerFunc,
		shutdown:   make(chan struct{}),
		isRunning:  true,
	}

	for i := 0; i < workers; i++ {
		queue.wg.Add(1)
		go queue.worker()
	}

	return queue
}

func (q *workQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.items:
			if job != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							select {
							case job.ResultChan <- &shotResult{
								Error: fmt.Errorf("worker panic: %v", r),
							}:
							default:
							}
						}
					}()

					q.workerFunc(job)
				}()
			}
		case <-q.shutdown:
			return
		}
	}
}

func (q *workQueue) Enqueue(job *shotJob) bool {
	q.mutex.RLock()
	if !q.isRunning {
		q.mutex.RUnlock()
		return false
	}
	q.mutex.RUnlock()

	select {
	case q.items <- job:
		return true
	default:
		return false
	}
}

func (q *workQueue) Size() int { return len(q.items) }

func (q *workQueue) Shutdown(timeout time.Duration) error {
	q.mutex.Lock()
	if !q.isRunning {
		q.mutex.Unlock()
		return nil
	}
	q.isRunning = false
	q.mutex.Unlock()

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
