package geolocation

import (
	"log/slog"
	"sync"
)

// Executor runs caller callbacks on the caller's execution context.
// Tasks submitted from one goroutine must run in submission order.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

func (f ExecutorFunc) Execute(task func()) { f(task) }

// serialExecutor runs tasks one at a time on a dedicated goroutine, in FIFO
// order. The queue is unbounded so platform goroutines never block on a
// slow callback.
type serialExecutor struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

func newSerialExecutor(logger *slog.Logger) *serialExecutor {
	e := &serialExecutor{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go e.loop()
	return e
}

// Execute queues task. Tasks submitted after Close are dropped.
func (e *serialExecutor) Execute(task func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, task)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close stops the dispatch goroutine. Queued tasks that have not started are discarded.
func (e *serialExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.queue = nil
	close(e.done)
}

func (e *serialExecutor) loop() {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			select {
			case <-e.wake:
				continue
			case <-e.done:
				return
			}
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(task)
	}
}

func (e *serialExecutor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Callback panicked", "panic", r)
		}
	}()
	task()
}
