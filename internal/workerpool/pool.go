// Package workerpool provides a bounded goroutine pool with a fixed-size
// task queue. The agent routes archive uploads through it so a slow or
// unreachable storage backend cannot pile up goroutines.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Pool runs submitted tasks on a fixed number of worker goroutines.
type Pool struct {
	workers   int
	queue     chan Task
	wg        sync.WaitGroup
	accepting atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce  sync.Once
	closeOnce sync.Once
}

// New starts a pool with the given worker count and queue capacity.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Info("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Context is cancelled when the pool starts draining. Tasks that block on
// I/O should derive their contexts from it so Shutdown can cut them short.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit enqueues a task. It returns false when the pool has stopped
// accepting work or the queue is full; the task is dropped in both cases.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	// Add before enqueue so Drain cannot observe a zero counter while a
	// task still sits in the queue.
	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task dropped")
		return false
	}
}

// StopAccepting makes all further Submit calls return false.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain stops accepting work, cancels the pool context, and waits for
// queued and in-flight tasks to finish, up to the context deadline.
// After Drain returns the queue is closed and the workers exit.
func (p *Pool) Drain(ctx context.Context) {
	p.accepting.Store(false)
	p.stopOnce.Do(p.cancel)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained")
	case <-ctx.Done():
		log.Warn("worker pool drain timed out")
	}

	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

// Shutdown is StopAccepting followed by Drain.
func (p *Pool) Shutdown(ctx context.Context) {
	p.StopAccepting()
	p.Drain(ctx)
}

func (p *Pool) worker() {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
		case <-p.ctx.Done():
			// Finish whatever is already queued, then exit.
			for {
				select {
				case task, ok := <-p.queue:
					if !ok {
						return
					}
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

// run executes a single task with panic recovery. wg.Done here matches the
// wg.Add in Submit.
func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
