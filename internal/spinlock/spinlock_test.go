package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinLockMutualExclusion(t *testing.T) {
	var lock SpinLock
	counter := 0
	var wg sync.WaitGroup
	const goroutines = 64
	const perGoroutine = 500
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				release := Guard(&lock)
				counter++
				release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*perGoroutine, counter)
}

func TestRWSpinLockSharedReaders(t *testing.T) {
	var lock RWSpinLock
	lock.RLock()
	lock.RLock()
	require.Equal(t, int32(2), lock.readers.Load())
	lock.RUnlock()
	lock.RUnlock()
	require.Equal(t, int32(0), lock.readers.Load())
}

func TestRWSpinLockExclusiveSetsWritingFlag(t *testing.T) {
	var lock RWSpinLock
	lock.Lock()
	require.True(t, lock.writing.Load())
	lock.Unlock()
	require.False(t, lock.writing.Load())
}

func TestSetYieldThresholdOverridesDefault(t *testing.T) {
	defer SetYieldThreshold(defaultYieldThreshold)
	SetYieldThreshold(5)
	assert.Equal(t, int64(5), yieldThreshold())
	SetYieldThreshold(0)
	assert.Equal(t, int64(5), yieldThreshold(), "a non-positive threshold must be ignored")
}

func TestRWSpinLockConcurrentCounters(t *testing.T) {
	var lock RWSpinLock
	value := 0
	var wg sync.WaitGroup
	const writers = 16
	const perWriter = 200
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				release := GuardExclusive(&lock)
				value++
				release()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				release := GuardShared(&lock)
				_ = value
				release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, writers*perWriter, value)
}
