package pipeline

import (
	"context"
	"sync"

	"media-transcriber/pkg/models"
)

type task struct {
	job *models.Job
	req Request
}

// WorkerPool runs queued tasks on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	taskQueue  chan *task
	workerFunc func(context.Context, *task)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int, workerFunc func(context.Context, *task)) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *task, queueSize),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// TrySubmit queues t without blocking and reports whether it was accepted.
func (wp *WorkerPool) TrySubmit(t *task) bool {
	select {
	case wp.taskQueue <- t:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case t, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, t)

		case <-ctx.Done():
			return
		}
	}
}
