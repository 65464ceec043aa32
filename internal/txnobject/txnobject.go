// Package txnobject implements the transaction-visibility state shared
// by every versioned entity (vertex, edge, class descriptor): a packed
// (commit version, status) pair updated with compare-and-swap so a
// single writer can publish a state transition without taking a lock.
// The transaction/version counters and active-set bookkeeping live in
// internal/txnstat.
package txnobject

import "sync/atomic"

// StatusFlag records where an entity is in its commit lifecycle.
type StatusFlag int

const (
	UncommittedCreate StatusFlag = iota
	CommittedCreate
	UncommittedDelete
	CommittedDelete
)

// State is the versionId+status pair stored behind the atomic pointer.
// It is always replaced, never mutated in place, so a reader observing
// a *State via Load sees a consistent snapshot.
type State struct {
	VersionID uint64
	Status    StatusFlag
}

// Object is the atomic transaction-state cell embedded in a vertex,
// edge, or class descriptor. The zero value is a freshly staged
// creation.
type Object struct {
	state atomic.Pointer[State]
}

func (o *Object) load() *State {
	if s := o.state.Load(); s != nil {
		return s
	}
	fresh := &State{Status: UncommittedCreate}
	o.state.CompareAndSwap(nil, fresh)
	return o.state.Load()
}

// PromoteState moves UNCOMMITTED_CREATE -> COMMITTED_CREATE or
// UNCOMMITTED_DELETE -> COMMITTED_DELETE, stamping commitID as the new
// version id. Any other status is left untouched. Returns the resulting
// status. Safe to call concurrently with readers (CompareAndSwap loop),
// but only one writer may call it for a given object at a time.
func (o *Object) PromoteState(commitID uint64) StatusFlag {
	for {
		prev := o.load()
		var next *State
		switch prev.Status {
		case UncommittedCreate:
			next = &State{VersionID: commitID, Status: CommittedCreate}
		case UncommittedDelete:
			next = &State{VersionID: commitID, Status: CommittedDelete}
		default:
			return prev.Status
		}
		if o.state.CompareAndSwap(prev, next) {
			return next.Status
		}
	}
}

// SetStatus overwrites the status while keeping the current version id,
// used to mark a committed entity UNCOMMITTED_DELETE when the writer
// deletes it, and by rollback to return such an entity to
// COMMITTED_CREATE.
func (o *Object) SetStatus(status StatusFlag) {
	for {
		prev := o.load()
		next := &State{VersionID: prev.VersionID, Status: status}
		if o.state.CompareAndSwap(prev, next) {
			return
		}
	}
}

// GetState returns the current (versionId, status) pair.
func (o *Object) GetState() (uint64, StatusFlag) {
	s := o.load()
	return s.VersionID, s.Status
}

// IsInvisibleTo reports whether a reader holding the given snapshot
// version must not see this entity: it was created by a still-open
// transaction, or deleted at-or-before the snapshot, or created after
// the snapshot.
func IsInvisibleTo(o *Object, snapshot uint64) bool {
	s := o.load()
	switch s.Status {
	case UncommittedCreate:
		return true
	case CommittedDelete:
		return snapshot >= s.VersionID
	case CommittedCreate:
		return snapshot < s.VersionID
	default:
		return false
	}
}

// IsInvisibleToWriter reports whether the active writer must treat this
// entity as gone: any delete, committed or not yet committed.
func IsInvisibleToWriter(o *Object) bool {
	_, status := o.GetState()
	return status == UncommittedDelete || status == CommittedDelete
}
