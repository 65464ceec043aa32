// Package shardmap implements the concurrent sharded map used to hold
// every versioned cell in the graph and schema engines: vertices, edges,
// and class descriptors. Versioning is the cell's responsibility (see
// internal/version); this package only owns concurrent insert, lookup,
// and bulk erase.
//
// The map is striped into a fixed number of buckets, each guarded by its
// own RWSpinLock, so a lookup in one bucket never waits on mutation in
// another -- the same lock-striping idea as a document lock manager,
// just applied to the map's own buckets rather than to per-key locks.
package shardmap

import (
	"fmt"
	"hash/fnv"

	"github.com/nogdb/nogdb-core/internal/spinlock"
	"github.com/nogdb/nogdb-core/internal/version"
)

const defaultStripes = 64

// Map is a hash map from K to a shared *version.Cell[T]. All exported
// operations are safe for concurrent use.
type Map[K comparable, T any] struct {
	stripes []*stripe[K, T]
	mask    uint32
}

type stripe[K comparable, T any] struct {
	lock     spinlock.RWSpinLock
	elements map[K]*version.Cell[T]
}

// New returns a Map with the default number of stripes (64).
func New[K comparable, T any]() *Map[K, T] {
	return NewWithStripes[K, T](defaultStripes)
}

// NewWithStripes returns a Map striped into n buckets. n is rounded up
// to the next power of two so the bucket selector can use a cheap mask
// instead of a modulo.
func NewWithStripes[K comparable, T any](n int) *Map[K, T] {
	if n <= 0 {
		n = defaultStripes
	}
	p := 1
	for p < n {
		p <<= 1
	}
	m := &Map[K, T]{
		stripes: make([]*stripe[K, T], p),
		mask:    uint32(p - 1),
	}
	for i := range m.stripes {
		m.stripes[i] = &stripe[K, T]{elements: make(map[K]*version.Cell[T])}
	}
	return m
}

func (m *Map[K, T]) stripeFor(key K) *stripe[K, T] {
	h := fnv.New32a()
	fmt.Fprintf(h, "%v", key)
	return m.stripes[h.Sum32()&m.mask]
}

// Insert stages value as the latest version of the cell at key,
// creating the cell (and its first staged version) if key is new.
// Returns the cell handle so the caller (the graph/schema engine) can
// promote or prune it later.
func (m *Map[K, T]) Insert(key K, value T) *version.Cell[T] {
	s := m.stripeFor(key)
	release := spinlock.GuardExclusive(&s.lock)
	defer release()
	if cell, ok := s.elements[key]; ok {
		cell.Stage(value)
		return cell
	}
	cell := version.NewWithValue(value)
	s.elements[key] = cell
	return cell
}

// Get returns the cell handle at key, or nil if key was never inserted
// (note: nil does not mean "deleted" -- a deleted entity's cell is kept
// until reclamation; see version.Cell's lifecycle).
func (m *Map[K, T]) Get(key K) *version.Cell[T] {
	s := m.stripeFor(key)
	release := spinlock.GuardShared(&s.lock)
	defer release()
	return s.elements[key]
}

// Find returns the latest visible value at key.
func (m *Map[K, T]) Find(key K) (T, bool) {
	cell := m.Get(key)
	if cell == nil {
		var zero T
		return zero, false
	}
	return cell.ReadLatest()
}

// FindAt returns the value at key as of snapshot.
func (m *Map[K, T]) FindAt(snapshot version.VersionId, key K) (T, bool) {
	cell := m.Get(key)
	if cell == nil {
		var zero T
		return zero, false
	}
	return cell.ReadAt(snapshot)
}

// Erase marks the latest version at key as deleted. It does not
// physically remove the cell -- that is ForcePurge's job, invoked only
// by the reclamation path.
func (m *Map[K, T]) Erase(key K) {
	if cell := m.Get(key); cell != nil {
		cell.DeleteLatest()
	}
}

// ForcePurge physically removes key from the map, regardless of any
// versioning state. Called by the reclamation path once no active
// reader can still observe the prior value, and when an uncommitted
// create is deleted or rolled back.
func (m *Map[K, T]) ForcePurge(key K) {
	s := m.stripeFor(key)
	release := spinlock.GuardExclusive(&s.lock)
	defer release()
	delete(s.elements, key)
}

// ForcePurgeBatch purges a batch of keys, taking each key's stripe lock
// separately.
func (m *Map[K, T]) ForcePurgeBatch(keys []K) {
	for _, k := range keys {
		m.ForcePurge(k)
	}
}

// Clear removes every entry from every stripe. Only safe to call when
// no transaction holds a reference into the map.
func (m *Map[K, T]) Clear() {
	for _, s := range m.stripes {
		release := spinlock.GuardExclusive(&s.lock)
		s.elements = make(map[K]*version.Cell[T])
		release()
	}
}

// PruneBelow cascades version.Cell.PruneBelow to every cell in the map,
// physically erasing any cell that becomes empty.
func (m *Map[K, T]) PruneBelow(base version.VersionId) {
	for _, s := range m.stripes {
		release := spinlock.GuardExclusive(&s.lock)
		for key, cell := range s.elements {
			if cell.PruneBelow(base) == 0 {
				delete(s.elements, key)
			}
		}
		release()
	}
}

// Len reports the total number of cells across all stripes, for tests
// and diagnostics.
func (m *Map[K, T]) Len() int {
	total := 0
	for _, s := range m.stripes {
		release := spinlock.GuardShared(&s.lock)
		total += len(s.elements)
		release()
	}
	return total
}

// Keys returns every key currently present across all stripes, in no
// particular order. Used by callers that need to scan the whole map
// (e.g. the schema engine's name lookup), which is expected to be rare
// next to single-key Get/Find traffic.
func (m *Map[K, T]) Keys() []K {
	var keys []K
	for _, s := range m.stripes {
		release := spinlock.GuardShared(&s.lock)
		for k := range s.elements {
			keys = append(keys, k)
		}
		release()
	}
	return keys
}
