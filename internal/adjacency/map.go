// Package adjacency implements the two-level versioned map used for a
// vertex's incoming and outgoing edge sets: outer key is an edge class
// id, inner key is a position id, value is a versioned handle to the
// edge it names.
//
// Values are held weakly with respect to the edge's lifetime: an
// adjacency cell never owns the edge, it only remembers where to look
// it up. The authoritative owner of an edge's lifetime is the graph
// engine's global edge map (internal/graph); this package's Resolver
// callback is how a lookup here turns a record id back into the actual
// edge, tolerating the edge having already been reclaimed.
package adjacency

import (
	"sort"

	"github.com/nogdb/nogdb-core/internal/spinlock"
	"github.com/nogdb/nogdb-core/internal/version"
)

// Ref is what an adjacency cell actually stores: just enough to
// re-resolve the edge on every read, which is how this package achieves
// "weak reference" semantics without a language-level weak pointer --
// see SPEC_FULL.md §8.
type Ref[K2 comparable] struct {
	ClassID  uint32
	Position K2
}

// Resolver turns a Ref back into a live value of type T, reporting
// false if the referenced entity no longer exists (it was physically
// reclaimed). The graph engine supplies this by closing over its edge
// map's Find method.
type Resolver[K2 comparable, T any] func(Ref[K2]) (T, bool)

// Map is the two-level versioned adjacency container.
type Map[K2 comparable, T any] struct {
	lock  spinlock.RWSpinLock
	outer map[uint32]*inner[K2]
}

type inner[K2 comparable] struct {
	lock  spinlock.RWSpinLock
	cells map[K2]*version.Cell[Ref[K2]]
}

// New returns an empty adjacency map.
func New[K2 comparable, T any]() *Map[K2, T] {
	return &Map[K2, T]{outer: make(map[uint32]*inner[K2])}
}

// Insert records that (classID, pos) now points at the given edge
// reference, as a freshly staged (unstable) version.
func (m *Map[K2, T]) Insert(classID uint32, pos K2, ref Ref[K2]) *version.Cell[Ref[K2]] {
	release := spinlock.GuardExclusive(&m.lock)
	in, ok := m.outer[classID]
	if !ok {
		in = &inner[K2]{cells: make(map[K2]*version.Cell[Ref[K2]])}
		m.outer[classID] = in
	}
	release()

	innerRelease := spinlock.GuardExclusive(&in.lock)
	defer innerRelease()
	if cell, ok := in.cells[pos]; ok {
		cell.Stage(ref)
		return cell
	}
	cell := version.NewWithValue(ref)
	in.cells[pos] = cell
	return cell
}

// Find returns the latest Ref at (classID, pos), resolved through
// resolve; a dangling weak reference (the edge was reclaimed) is
// reported as "not found".
func (m *Map[K2, T]) Find(classID uint32, pos K2, resolve Resolver[K2, T]) (T, bool) {
	cell := m.get(classID, pos)
	if cell == nil {
		var zero T
		return zero, false
	}
	ref, ok := cell.ReadLatest()
	if !ok {
		var zero T
		return zero, false
	}
	return resolve(ref)
}

// FindAt is Find at a fixed snapshot version, used by read-only
// transactions.
func (m *Map[K2, T]) FindAt(snapshot version.VersionId, classID uint32, pos K2, resolve Resolver[K2, T]) (T, bool) {
	cell := m.get(classID, pos)
	if cell == nil {
		var zero T
		return zero, false
	}
	ref, ok := cell.ReadAt(snapshot)
	if !ok {
		var zero T
		return zero, false
	}
	return resolve(ref)
}

// GetCell returns the raw cell at (classID, pos), used by the commit
// path to prune and promote an endpoint's adjacency entry directly.
func (m *Map[K2, T]) GetCell(classID uint32, pos K2) *version.Cell[Ref[K2]] {
	return m.get(classID, pos)
}

func (m *Map[K2, T]) get(classID uint32, pos K2) *version.Cell[Ref[K2]] {
	release := spinlock.GuardShared(&m.lock)
	in, ok := m.outer[classID]
	release()
	if !ok {
		return nil
	}
	innerRelease := spinlock.GuardShared(&in.lock)
	defer innerRelease()
	return in.cells[pos]
}

// Erase marks the latest version at (classID, pos) deleted without
// physically removing it.
func (m *Map[K2, T]) Erase(classID uint32, pos K2) {
	if cell := m.get(classID, pos); cell != nil {
		cell.DeleteLatest()
	}
}

// PruneBelow cascades pruning to every inner cell; an inner map that
// empties out is removed, and then the outer key is erased.
func (m *Map[K2, T]) PruneBelow(base version.VersionId) {
	release := spinlock.GuardExclusive(&m.lock)
	defer release()
	for classID, in := range m.outer {
		innerRelease := spinlock.GuardExclusive(&in.lock)
		for pos, cell := range in.cells {
			if cell.PruneBelow(base) == 0 {
				delete(in.cells, pos)
			}
		}
		empty := len(in.cells) == 0
		innerRelease()
		if empty {
			delete(m.outer, classID)
		}
	}
}

// ClassKeys returns the outer keys currently indexed (edge classes that
// have at least one adjacency entry for this vertex).
func (m *Map[K2, T]) ClassKeys() []uint32 {
	release := spinlock.GuardShared(&m.lock)
	defer release()
	keys := make([]uint32, 0, len(m.outer))
	for k := range m.outer {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// PositionKeys returns the inner keys currently indexed under classID.
func (m *Map[K2, T]) PositionKeys(classID uint32) []K2 {
	release := spinlock.GuardShared(&m.lock)
	in, ok := m.outer[classID]
	release()
	if !ok {
		return nil
	}
	innerRelease := spinlock.GuardShared(&in.lock)
	defer innerRelease()
	keys := make([]K2, 0, len(in.cells))
	for k := range in.cells {
		keys = append(keys, k)
	}
	return keys
}

// Keys returns, for every outer key currently indexed, its inner keys.
// Used when an operation needs to walk the whole adjacency set (e.g.
// deleting a vertex's every edge).
func (m *Map[K2, T]) Keys() map[uint32][]K2 {
	result := make(map[uint32][]K2)
	for _, classID := range m.ClassKeys() {
		result[classID] = m.PositionKeys(classID)
	}
	return result
}
