// Package metrics holds the atomic counters a Context updates as
// transactions commit, roll back, and reclaim old versions -- plain
// running counters rather than a metrics client library, since the
// core has no network surface to export them over.
package metrics

import "sync/atomic"

// Counters is the set of running totals a Context maintains. The zero
// value is ready to use.
type Counters struct {
	Commits           atomic.Int64
	Rollbacks         atomic.Int64
	ReclamationPasses atomic.Int64
	ActiveReaders     atomic.Int64
	ClassesReclaimed  atomic.Int64
	VerticesReclaimed atomic.Int64
	EdgesReclaimed    atomic.Int64
}

// New returns a ready-to-use Counters.
func New() *Counters {
	return &Counters{}
}

// Snapshot is a point-in-time read of every counter, used by the CLI's
// stat command and by tests asserting on reclamation behavior.
type Snapshot struct {
	Commits           int64
	Rollbacks         int64
	ReclamationPasses int64
	ActiveReaders     int64
	ClassesReclaimed  int64
	VerticesReclaimed int64
	EdgesReclaimed    int64
}

// Snapshot reads every counter without synchronizing them against each
// other (each individual load is atomic, but the set as a whole is not
// a consistent point-in-time view under concurrent writers).
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Commits:           c.Commits.Load(),
		Rollbacks:         c.Rollbacks.Load(),
		ReclamationPasses: c.ReclamationPasses.Load(),
		ActiveReaders:     c.ActiveReaders.Load(),
		ClassesReclaimed:  c.ClassesReclaimed.Load(),
		VerticesReclaimed: c.VerticesReclaimed.Load(),
		EdgesReclaimed:    c.EdgesReclaimed.Load(),
	}
}
