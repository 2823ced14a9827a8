package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrSerializerStopped is returned for tasks admitted after shutdown began.
var ErrSerializerStopped = errors.New("serializer stopped")

// Serializer runs submitted tasks strictly one at a time, in admission order.
// The render and scrape stages are not reentrancy-safe within one process
// (a full ffmpeg encode plus a browser instance each), so everything behind
// the upload endpoint funnels through this single worker.
//
// Submission never blocks the worker: Run appends the task and returns the
// task's own error once it has executed, which is how the HTTP handler holds
// the connection open for the duration of the job.
type Serializer struct {
	mu      sync.Mutex
	queue   []*task
	stopped bool

	wake chan struct{}
	done chan struct{}

	base context.Context
}

type task struct {
	fn     func(context.Context) error
	result chan error
}

// NewSerializer starts the single drain worker. Tasks execute under base,
// not under the submitting request's context: once a job starts it runs to
// completion even if the client goes away.
func NewSerializer(base context.Context) *Serializer {
	s := &Serializer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		base: base,
	}
	go s.drain()
	return s
}

// Run enqueues fn and blocks until it has executed, returning its error.
// FIFO order is guaranteed; a failing or panicking task never affects tasks
// queued behind it.
func (s *Serializer) Run(fn func(context.Context) error) error {
	t := &task{fn: fn, result: make(chan error, 1)}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSerializerStopped
	}
	s.queue = append(s.queue, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return <-t.result
}

// Stop rejects new tasks, fails queued-but-unstarted tasks, and waits for the
// in-flight task (if any) to finish.
func (s *Serializer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

func (s *Serializer) drain() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()

			select {
			case <-s.wake:
			case <-s.base.Done():
				s.mu.Lock()
				s.stopped = true
				s.failPendingLocked()
				s.mu.Unlock()
				return
			}
			continue
		}

		if s.stopped {
			s.failPendingLocked()
			s.mu.Unlock()
			return
		}

		t := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		t.result <- s.execute(t)
	}
}

// execute isolates one task: a panic becomes that task's error and nothing
// else.
func (s *Serializer) execute(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Serializer] task panicked: %v", r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return t.fn(s.base)
}

func (s *Serializer) failPendingLocked() {
	for _, t := range s.queue {
		t.result <- ErrSerializerStopped
	}
	s.queue = nil
}
