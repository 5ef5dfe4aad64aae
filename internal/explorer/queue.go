package explorer

import "sync"

// Queue runs functions one at a time on a single goroutine. Every mutation
// of a live tree goes through it.
type Queue struct {
	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type job struct {
	fn   func()
	done chan struct{}
}

// NewQueue starts the queue goroutine.
func NewQueue() *Queue {
	q := &Queue{
		jobs:    make(chan job),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for {
		select {
		case j := <-q.jobs:
			j.fn()
			close(j.done)
		case <-q.quit:
			return
		}
	}
}

// Do runs fn on the queue and waits for it. It reports false, without
// running fn, once the queue is stopped. Do must not be called from a
// function already running on the queue.
func (q *Queue) Do(fn func()) bool {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case q.jobs <- j:
	case <-q.quit:
		return false
	}
	<-j.done
	return true
}

// Stop ends the queue goroutine and waits for the running job to finish.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.quit) })
	<-q.stopped
}
