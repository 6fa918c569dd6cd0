package keepalive

import (
	"sync"
)

// Executor runs callback invocations on the consuming side, decoupled from the
// goroutine that owns the tick schedule.
type Executor interface {
	// Submit hands task to the executor without waiting for it to run.
	Submit(task func()) error
	// Close stops accepting work and waits for submitted tasks to finish.
	Close() error
}

// ExecutorFactory creates the executor for one keep-alive cycle.
type ExecutorFactory func(overlapAllowed bool) (Executor, error)

// maxConcurrent bounds in-flight invocations when overlap is allowed.
const maxConcurrent = 16

// DefaultExecutorFactory returns a SerialExecutor when overlap is disallowed
// and a ConcurrentExecutor otherwise.
func DefaultExecutorFactory(overlapAllowed bool) (Executor, error) {
	if overlapAllowed {
		return NewConcurrentExecutor(maxConcurrent), nil
	}
	return NewSerialExecutor(1), nil
}

// SerialExecutor runs tasks one at a time, in submission order, on a single goroutine.
type SerialExecutor struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewSerialExecutor starts a SerialExecutor that queues up to queueSize tasks.
func NewSerialExecutor(queueSize int) *SerialExecutor {
	if queueSize < 1 {
		queueSize = 1
	}
	e := &SerialExecutor{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Submit queues task. It never blocks; a full queue returns ErrExecutorBusy.
func (e *SerialExecutor) Submit(task func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	select {
	case e.tasks <- task:
		return nil
	default:
		return ErrExecutorBusy
	}
}

// Close drains queued tasks and waits for the worker goroutine to exit.
func (e *SerialExecutor) Close() error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.tasks)
	})
	<-e.done
	return nil
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// ConcurrentExecutor runs every task on its own goroutine, so invocations may overlap.
type ConcurrentExecutor struct {
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewConcurrentExecutor creates an executor allowing up to limit tasks in flight.
func NewConcurrentExecutor(limit int) *ConcurrentExecutor {
	if limit < 1 {
		limit = 1
	}
	return &ConcurrentExecutor{slots: make(chan struct{}, limit)}
}

// Submit starts task on a new goroutine, or returns ErrExecutorBusy at the limit.
func (e *ConcurrentExecutor) Submit(task func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	select {
	case e.slots <- struct{}{}:
	default:
		return ErrExecutorBusy
	}
	e.wg.Add(1)
	go func() {
		defer func() {
			<-e.slots
			e.wg.Done()
		}()
		task()
	}()
	return nil
}

// Close rejects new tasks and waits for in-flight ones.
func (e *ConcurrentExecutor) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}
