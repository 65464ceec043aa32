// Package txnstat implements the database-wide transaction bookkeeping
// shared by every transaction of one open context: the monotonic transaction id and
// version id counters, and the set of currently active transactions
// used to find the oldest snapshot still pinned by a reader (the
// reclamation watermark).
package txnstat

import (
	"sort"
	"sync/atomic"

	"github.com/nogdb/nogdb-core/internal/spinlock"
)

// Stat holds the counters and active-transaction set for one open
// context. The zero value is not ready to use; a Stat from New starts
// transaction ids at 1 and version ids at 0.
type Stat struct {
	maxTxnID     atomic.Uint64
	maxVersionID atomic.Uint64

	lock   spinlock.SpinLock
	active map[uint64]uint64 // txnId -> versionId at the time it opened
}

// New returns a Stat ready for use.
func New() *Stat {
	s := &Stat{active: make(map[uint64]uint64)}
	s.maxTxnID.Store(1)
	return s
}

// AllocateTxnID returns the next transaction id and advances the
// counter.
func (s *Stat) AllocateTxnID() uint64 {
	return s.maxTxnID.Add(1) - 1
}

// AdvanceVersionID advances the version counter by one and returns its
// value from before the advance. Called once per committing read-write
// transaction.
func (s *Stat) AdvanceVersionID() uint64 {
	return s.maxVersionID.Add(1) - 1
}

// CurrentVersionID returns the counter's current value without
// advancing it, the snapshot a newly opened read-only transaction
// observes.
func (s *Stat) CurrentVersionID() uint64 {
	return s.maxVersionID.Load()
}

// MaxTxnID and MaxVersionID report the counters' current values without
// advancing them, surfaced by the stat CLI command.
func (s *Stat) MaxTxnID() uint64 {
	return s.maxTxnID.Load()
}

func (s *Stat) MaxVersionID() uint64 {
	return s.maxVersionID.Load()
}

// RegisterActive records that txnID is now open, observing snapshot
// versionID.
func (s *Stat) RegisterActive(txnID, versionID uint64) {
	release := spinlock.Guard(&s.lock)
	defer release()
	s.active[txnID] = versionID
}

// UnregisterActive removes txnID from the active set, called when a
// transaction commits or rolls back.
func (s *Stat) UnregisterActive(txnID uint64) {
	release := spinlock.Guard(&s.lock)
	defer release()
	delete(s.active, txnID)
}

// MinActive returns the (txnId, versionId) pair of the oldest still-open
// transaction, or (0, 0) if none are active. Entities whose delete
// version is at-or-below this versionId are safe to reclaim.
func (s *Stat) MinActive() (uint64, uint64) {
	release := spinlock.Guard(&s.lock)
	defer release()
	if len(s.active) == 0 {
		return 0, 0
	}
	minTxn := uint64(0)
	first := true
	for txnID := range s.active {
		if first || txnID < minTxn {
			minTxn = txnID
			first = false
		}
	}
	return minTxn, s.active[minTxn]
}

// IsPinnedMin reports whether txnID is (still) the oldest active
// transaction and, if so, whether it is also the sole pin at its
// version -- i.e. whether the next-oldest active transaction observes a
// strictly newer snapshot. A read-only transaction that is committing
// uses this to decide whether it may prune version history up to its
// own snapshot as it leaves.
func (s *Stat) IsPinnedMin(txnID uint64) bool {
	release := spinlock.Guard(&s.lock)
	defer release()
	if len(s.active) == 0 {
		return false
	}
	ids := make([]uint64, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if ids[0] != txnID {
		return false
	}
	if len(ids) == 1 {
		return true
	}
	return s.active[txnID] < s.active[ids[1]]
}
