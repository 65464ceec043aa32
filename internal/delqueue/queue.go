// Package delqueue implements the small version-tagged FIFO the graph and
// schema engines use to remember "this entity committed to deleted at
// version V, physically erase it once no reader can still need V". The
// commit path enqueues; the reclamation path drains everything whose tag
// is at or below the version it just proved safe.
//
// Guarded by a single SpinLock rather than a striped map: entries are
// added and drained in short, infrequent bursts (once per commit), the
// same tradeoff internal/txnstat makes for its active-transaction set.
package delqueue

import "github.com/nogdb/nogdb-core/internal/spinlock"

type entry[T any] struct {
	version uint64
	item    T
}

// Queue is a FIFO of items tagged with the version that deleted them. The
// zero value is an empty queue ready to use.
type Queue[T any] struct {
	lock    spinlock.SpinLock
	entries []entry[T]
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue records item as deleted at version.
func (q *Queue[T]) Enqueue(version uint64, item T) {
	release := spinlock.Guard(&q.lock)
	defer release()
	q.entries = append(q.entries, entry[T]{version: version, item: item})
}

// PopThrough removes and returns every item tagged with a version <=
// through, in FIFO order, leaving later entries queued.
func (q *Queue[T]) PopThrough(through uint64) []T {
	release := spinlock.Guard(&q.lock)
	defer release()
	if len(q.entries) == 0 {
		return nil
	}
	cut := 0
	for cut < len(q.entries) && q.entries[cut].version <= through {
		cut++
	}
	if cut == 0 {
		return nil
	}
	out := make([]T, cut)
	for i := 0; i < cut; i++ {
		out[i] = q.entries[i].item
	}
	q.entries = append(q.entries[:0], q.entries[cut:]...)
	return out
}

// Len reports the number of entries still queued, for tests and diagnostics.
func (q *Queue[T]) Len() int {
	release := spinlock.Guard(&q.lock)
	defer release()
	return len(q.entries)
}
