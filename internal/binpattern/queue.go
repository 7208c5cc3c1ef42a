package binpattern

import "sort"

// Queue accumulates PendingWrites and hands them back sorted by ascending
// Position, the way the ZIP walker needs them applied. A Queue is not
// safe for concurrent use; the walker only ever touches it from the
// single goroutine driving a single Walk call.
type Queue struct {
	writes []PendingWrite
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a write to the queue.
func (q *Queue) Add(w PendingWrite) {
	q.writes = append(q.writes, w)
}

// Len reports how many writes are queued.
func (q *Queue) Len() int {
	return len(q.writes)
}

// Sorted returns the queued writes ordered by ascending Position. Ties are
// allowed (stable sort preserves insertion order among them); the walker
// never produces overlapping writes for a single archive.
func (q *Queue) Sorted() []PendingWrite {
	out := make([]PendingWrite, len(q.writes))
	copy(out, q.writes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}
