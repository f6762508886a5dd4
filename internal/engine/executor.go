package engine

import "sync"

// serialExecutor runs submitted jobs one at a time on a single worker
// goroutine. The queue is unbounded so a job can enqueue its successor from
// inside the worker without deadlocking, which is what the self-resubmitting
// processing loop relies on.
type serialExecutor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newSerialExecutor() *serialExecutor {
	e := &serialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Submit enqueues a job. Returns false if the executor is closed.
func (e *serialExecutor) Submit(job func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	e.queue = append(e.queue, job)
	e.cond.Signal()
	return true
}

// Do submits a job and waits for it to complete. Returns false if the
// executor is closed.
func (e *serialExecutor) Do(job func()) bool {
	finished := make(chan struct{})
	ok := e.Submit(func() {
		defer close(finished)
		job()
	})
	if !ok {
		return false
	}
	<-finished
	return true
}

// Close stops accepting jobs, drains the queue and waits for the worker to
// exit. Safe to call once.
func (e *serialExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	<-e.done
}

func (e *serialExecutor) run() {
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.closed {
			e.mu.Unlock()
			close(e.done)
			return
		}
		job := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		job()
	}
}
