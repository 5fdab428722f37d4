// Package dispatch provides a serial task executor. All tasks posted to
// one Serial run on a single goroutine, in post order, which gives callers
// a single-writer execution context without per-structure locking.
package dispatch

import "sync"

// Serial executes posted tasks one at a time on a dedicated goroutine.
// A stopped Serial drops all posted and pending tasks.
type Serial struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
}

// NewSerial returns a running serial executor.
func NewSerial() *Serial {
	s := &Serial{wake: make(chan struct{}, 1)}
	go s.loop()

	return s
}

// Post queues fn for execution. It reports whether the task was accepted;
// a task posted after Stop is dropped and false is returned.
func (s *Serial) Post(fn func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}

	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	s.signal()

	return true
}

// PostWait queues fn and blocks until it has run. It must not be called
// from the executor goroutine itself.
func (s *Serial) PostWait(fn func()) bool {
	done := make(chan struct{})
	if !s.Post(func() {
		fn()
		close(done)
	}) {
		return false
	}

	<-done

	return true
}

// Stop stops the executor and discards any pending tasks. The currently
// running task, if any, completes. Stop does not wait and is safe to call
// from a task running on the executor itself.
func (s *Serial) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.stopped = true
	s.queue = nil
	s.mu.Unlock()

	s.signal()
}

// Stopped reports whether Stop has been called.
func (s *Serial) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

func (s *Serial) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Serial) loop() {
	for range s.wake {
		for {
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}

			fn := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			fn()
		}
	}
}
