// Package wp is a sharded worker pool. Tasks submitted under the same key
// run on the same worker, in submission order.
package wp

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/fasthash/fnv1a"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("worker pool stopped")

type Pool struct {
	maxWorkers int
	taskQueues []chan func()
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(maxWorkers int, queueBuffer int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueBuffer < 1 {
		queueBuffer = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueues: make([]chan func(), maxWorkers),
	}

	for i := 0; i < maxWorkers; i++ {
		p.taskQueues[i] = make(chan func(), queueBuffer)
		p.wg.Add(1)
		go p.startWorker(p.taskQueues[i])
	}

	return p
}

func (p *Pool) startWorker(queue chan func()) {
	defer p.wg.Done()
	for task := range queue {
		task()
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.maxWorkers
}

// Submit queues task on the worker owning uid. It blocks while that
// worker's queue is full, until ctx ends.
func (p *Pool) Submit(ctx context.Context, uid string, task func()) error {
	if task == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	idx := fnv1a.HashString64(uid) % uint64(p.maxWorkers)
	select {
	case p.taskQueues[idx] <- task:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "submitting task %q", uid)
	}
}

// Stop refuses new tasks, runs every queued task and waits for the workers
// to exit. It is safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	for _, q := range p.taskQueues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
