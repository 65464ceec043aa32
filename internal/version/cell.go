// Package version implements the versioned value cell that every graph
// and schema entity in the core is built from: one pending "unstable"
// write plus an append-only log of committed "stable" entries, each
// tagged with the version id that promoted it.
//
// A cell never mutates a stable entry in place; it only appends (at
// Promote) or truncates a prefix (at PruneBelow). This is what lets
// readers holding an old snapshot keep dereferencing a stable entry
// while a writer stages and promotes new ones concurrently.
package version

import "github.com/nogdb/nogdb-core/internal/spinlock"

// VersionId identifies a commit. Zero means "no version" / "none".
type VersionId = uint64

// entry is one committed value in the stable sequence.
type entry[T any] struct {
	versionID VersionId
	active    bool
	value     T
}

// unstable is the single pending write staged by the active writer.
type unstable[T any] struct {
	visible bool
	active  bool
	value   T
}

// Cell holds one pending write plus an ordered log of committed
// versions for a single entity field (a vertex, an edge, a class
// descriptor's name, and so on). Stable-sequence reads take the lock
// shared; stable mutations take it exclusive. The unstable slot is only
// ever touched by the single active writer under the context's global
// writer lock, so Cell itself does not serialize writers against each
// other.
type Cell[T any] struct {
	lock    spinlock.RWSpinLock
	stable  []entry[T]
	pending unstable[T]
}

// New returns an empty cell.
func New[T any]() *Cell[T] {
	return &Cell[T]{}
}

// NewWithValue returns a cell whose first stage is already populated,
// the shape shardmap.Map.Insert and adjacency.Map.Insert need when they
// create the cell and the first version in the same call.
func NewWithValue[T any](value T) *Cell[T] {
	c := &Cell[T]{}
	c.Stage(value)
	return c
}

// Stage sets the unstable slot to value, visible to the writer that
// called it. It overwrites any value the same writer staged earlier.
// Writers only.
func (c *Cell[T]) Stage(value T) {
	c.pending = unstable[T]{visible: true, active: true, value: value}
}

// DeleteLatest marks the unstable slot inactive so a following Promote
// records a deletion. If nothing was staged yet, it first promotes the
// most recent stable value into the unstable slot (so there is
// something for Promote to mark deleted), then marks it inactive.
// Writers only.
func (c *Cell[T]) DeleteLatest() {
	if !c.pending.visible {
		release := spinlock.GuardShared(&c.lock)
		if n := len(c.stable); n > 0 {
			c.pending = unstable[T]{visible: true, active: true, value: c.stable[n-1].value}
		}
		release()
	}
	c.pending.active = false
}

// ReadLatest returns the unstable value if visible, else the most
// recent stable entry's value. The bool reports whether an active value
// was found at all.
func (c *Cell[T]) ReadLatest() (T, bool) {
	if c.pending.visible {
		if c.pending.active {
			return c.pending.value, true
		}
		var zero T
		return zero, false
	}
	release := spinlock.GuardShared(&c.lock)
	defer release()
	if n := len(c.stable); n > 0 {
		last := c.stable[n-1]
		if last.active {
			return last.value, true
		}
	}
	var zero T
	return zero, false
}

// ReadUnstable returns the unstable value only, ignoring the stable
// sequence. Used by the commit path to resolve an edge endpoint that
// may have just been relinked by the same writer.
func (c *Cell[T]) ReadUnstable() (T, bool) {
	if c.pending.visible && c.pending.active {
		return c.pending.value, true
	}
	var zero T
	return zero, false
}

// ReadStableLatest returns the most recent stable entry regardless of
// any staged unstable write.
func (c *Cell[T]) ReadStableLatest() (T, bool) {
	release := spinlock.GuardShared(&c.lock)
	defer release()
	if n := len(c.stable); n > 0 {
		last := c.stable[n-1]
		return last.value, last.active
	}
	var zero T
	return zero, false
}

// ReadAt returns the active value of the greatest stable entry whose
// version id is <= snapshot, or "not found". It never consults the
// unstable slot, so readers can never observe another transaction's
// pending write.
func (c *Cell[T]) ReadAt(snapshot VersionId) (T, bool) {
	release := spinlock.GuardShared(&c.lock)
	defer release()
	for i := len(c.stable) - 1; i >= 0; i-- {
		e := c.stable[i]
		if e.versionID <= snapshot {
			if e.active {
				return e.value, true
			}
			var zero T
			return zero, false
		}
	}
	var zero T
	return zero, false
}

// Promote is the commit step: if the unstable slot is visible, append
// it to the stable sequence tagged with versionID, then hide the
// unstable slot. Writers only.
func (c *Cell[T]) Promote(versionID VersionId) {
	if !c.pending.visible {
		return
	}
	c.DisableStaged()
	release := spinlock.GuardExclusive(&c.lock)
	defer release()
	c.stable = append(c.stable, entry[T]{versionID: versionID, active: c.pending.active, value: c.pending.value})
}

// DisableStaged marks the unstable slot invisible without touching the
// stable sequence. This is rollback of a write.
func (c *Cell[T]) DisableStaged() {
	c.pending.visible = false
}

// PruneBelow erases stable entries with version id strictly less than
// baseVersion, always keeping the most recent entry. If, after pruning,
// only a single inactive entry older than baseVersion remains, the cell
// becomes empty. Returns the remaining count, including the unstable
// slot if it is still visible, so the caller (a concurrent map) can
// decide whether to drop the whole cell.
func (c *Cell[T]) PruneBelow(baseVersion VersionId) int {
	release := spinlock.GuardExclusive(&c.lock)
	defer release()
	if len(c.stable) > 0 {
		cut := 0
		for cut < len(c.stable)-1 && c.stable[cut].versionID < baseVersion {
			cut++
		}
		if cut > 0 {
			c.stable = append(c.stable[:0], c.stable[cut:]...)
		}
		if len(c.stable) == 1 && c.stable[0].versionID < baseVersion && !c.stable[0].active {
			c.stable = nil
		}
	}
	count := len(c.stable)
	if c.pending.visible {
		count++
	}
	return count
}

// ClearUnstable disables the staged write and reports the remaining
// stable-entry count, used when a caller wants to know whether the cell
// is now empty without also pruning the stable sequence.
func (c *Cell[T]) ClearUnstable() int {
	c.DisableStaged()
	release := spinlock.GuardShared(&c.lock)
	defer release()
	return len(c.stable)
}

// StableLen reports the current stable-sequence length, for tests and
// diagnostics.
func (c *Cell[T]) StableLen() int {
	release := spinlock.GuardShared(&c.lock)
	defer release()
	return len(c.stable)
}
