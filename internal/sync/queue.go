package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"birthday-sync-service/internal/logger"
)

// Task is one unit of deferred background work.
type Task func(ctx context.Context)

// Queue accepts tasks for execution after an optional delay. The bulk
// coordinator uses the delay to stagger chunks instead of bursting them.
type Queue interface {
	Enqueue(task Task, delay time.Duration)
}

// MemoryQueue runs tasks on a bounded in-process worker pool. Delayed tasks
// are held on a timer until due, then handed to the pool.
type MemoryQueue struct {
	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timers  sync.WaitGroup
	workers int
}

func NewMemoryQueue(workers int) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		tasks:   make(chan Task, 256),
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
}

func (q *MemoryQueue) Start() {
	logger.Log.Info("Starting task queue", zap.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
}

// Stop drains nothing: pending delayed tasks are dropped, queued ones run to
// completion before Stop returns.
func (q *MemoryQueue) Stop() {
	q.cancel()
	q.timers.Wait()
	close(q.tasks)
	q.wg.Wait()
	logger.Log.Info("Stopped task queue")
}

func (q *MemoryQueue) Enqueue(task Task, delay time.Duration) {
	if delay <= 0 {
		q.push(task)
		return
	}
	q.timers.Add(1)
	timer := time.NewTimer(delay)
	go func() {
		defer q.timers.Done()
		defer timer.Stop()
		select {
		case <-timer.C:
			q.push(task)
		case <-q.ctx.Done():
		}
	}()
}

func (q *MemoryQueue) push(task Task) {
	select {
	case q.tasks <- task:
	case <-q.ctx.Done():
	}
}

func (q *MemoryQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		task(q.ctx)
	}
}
