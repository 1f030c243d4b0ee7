// Package writeq serializes mutations per file path: strict FIFO ordering
// for one key, full independence across keys.
package writeq

import "sync"

// Queue chains operations per key. A new operation runs strictly after the
// key's current tail settles, whether or not that prior operation
// succeeded, so a failed write never jams the queue. When an operation
// finishes and is still the live tail, its key is removed from the map so
// idle keys cost nothing.
type Queue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{tails: make(map[string]chan struct{})}
}

// Do enqueues op under key and blocks until it has run, returning the
// operation's own result. Submission order is fixed at the moment Do
// acquires its slot, so concurrent callers for one key execute in the
// order their Do calls are observed, never concurrently.
func (q *Queue) Do(key string, op func() error) error {
	q.mu.Lock()
	prev := q.tails[key]
	done := make(chan struct{})
	q.tails[key] = done
	q.mu.Unlock()

	if prev != nil {
		<-prev
	}

	var err error
	func() {
		defer close(done)
		err = op()
	}()

	q.mu.Lock()
	if q.tails[key] == done {
		delete(q.tails, key)
	}
	q.mu.Unlock()

	return err
}

// Pending reports whether the queue currently holds an entry for key.
func (q *Queue) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.tails[key]
	return ok
}
