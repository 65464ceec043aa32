// Package spinlock provides busy-wait synchronization primitives for the
// graph core's hot path: a plain mutual-exclusion spinlock and a
// reader-writer spinlock, both backed by atomics rather than OS mutexes.
//
// Every versioned cell and every concurrent map in this module owns one
// of these locks. Because writers are already globally serialized by the
// context's writer lock (pkg/nogdb), contention on any single cell lock
// is expected to be low and short-lived, so spinning beats the overhead
// of parking on a kernel futex.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// defaultYieldThreshold bounds how many times a spin loop busy-waits
// before calling runtime.Gosched. Without a threshold a spinning
// goroutine can starve the one it is waiting on under an unfair
// GOMAXPROCS=1 schedule.
const defaultYieldThreshold = 1000

var yieldThresholdVar atomic.Int64

func init() {
	yieldThresholdVar.Store(defaultYieldThreshold)
}

// SetYieldThreshold overrides the spin-then-yield threshold for every
// lock in the process, wired from pkg/config.Config.SpinYieldThreshold
// at Context startup. n <= 0 is ignored.
func SetYieldThreshold(n int) {
	if n > 0 {
		yieldThresholdVar.Store(int64(n))
	}
}

func yieldThreshold() int64 {
	return yieldThresholdVar.Load()
}

// SpinLock is a simple test-and-set mutual exclusion lock.
type SpinLock struct {
	locked atomic.Bool
}

// Lock blocks until the lock is acquired.
func (s *SpinLock) Lock() {
	spins := 0
	for !s.locked.CompareAndSwap(false, true) {
		spins++
		if int64(spins) > yieldThreshold() {
			runtime.Gosched()
			spins = 0
		}
	}
}

// Unlock releases the lock. Unlocking an unlocked SpinLock is undefined.
func (s *SpinLock) Unlock() {
	s.locked.Store(false)
}

// Guard acquires s and returns a function that releases it, so callers
// can write `defer spinlock.Guard(&s)()`.
func Guard(s *SpinLock) func() {
	s.Lock()
	return s.Unlock
}

// RWSpinLock is a reader-writer spinlock: many shared holders or one
// exclusive holder, never both. It makes no fairness guarantee between
// waiting readers and waiting writers beyond what bounded spin-then-yield
// provides.
type RWSpinLock struct {
	writing atomic.Bool
	readers atomic.Int32
}

// Lock acquires the lock exclusively, blocking until no readers remain.
func (l *RWSpinLock) Lock() {
	spins := 0
	for !l.tryLock() {
		spins++
		if int64(spins) > yieldThreshold() {
			runtime.Gosched()
			spins = 0
		}
	}
	spins = 0
	for l.readers.Load() > 0 {
		spins++
		if int64(spins) > yieldThreshold() {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (l *RWSpinLock) tryLock() bool {
	return l.writing.CompareAndSwap(false, true)
}

// Unlock releases an exclusive lock.
func (l *RWSpinLock) Unlock() {
	l.writing.Store(false)
}

// RLock acquires the lock in shared mode, blocking while a writer holds
// or is waiting to hold the lock.
func (l *RWSpinLock) RLock() {
	spins := 0
	for !l.tryRLock() {
		spins++
		if int64(spins) > yieldThreshold() {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (l *RWSpinLock) tryRLock() bool {
	spins := 0
	for l.writing.Load() {
		spins++
		if int64(spins) > yieldThreshold() {
			runtime.Gosched()
			spins = 0
		}
	}
	l.readers.Add(1)
	if l.writing.Load() {
		l.readers.Add(-1)
		return false
	}
	return true
}

// RUnlock releases a shared lock.
func (l *RWSpinLock) RUnlock() {
	l.readers.Add(-1)
}

// GuardExclusive acquires l exclusively and returns the matching release.
func GuardExclusive(l *RWSpinLock) func() {
	l.Lock()
	return l.Unlock
}

// GuardShared acquires l in shared mode and returns the matching release.
func GuardShared(l *RWSpinLock) func() {
	l.RLock()
	return l.RUnlock
}
