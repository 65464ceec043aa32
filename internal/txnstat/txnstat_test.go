package txnstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateTxnIDIsMonotonicAndStartsAtOne(t *testing.T) {
	s := New()
	assert.Equal(t, uint64(1), s.AllocateTxnID())
	assert.Equal(t, uint64(2), s.AllocateTxnID())
	assert.Equal(t, uint64(3), s.AllocateTxnID())
}

func TestAdvanceVersionIDIsMonotonicAndStartsAtZero(t *testing.T) {
	s := New()
	assert.Equal(t, uint64(0), s.CurrentVersionID())
	assert.Equal(t, uint64(0), s.AdvanceVersionID())
	assert.Equal(t, uint64(1), s.CurrentVersionID())
	assert.Equal(t, uint64(1), s.AdvanceVersionID())
}

func TestMinActiveEmpty(t *testing.T) {
	s := New()
	txn, ver := s.MinActive()
	assert.Equal(t, uint64(0), txn)
	assert.Equal(t, uint64(0), ver)
}

func TestMinActiveTracksOldest(t *testing.T) {
	s := New()
	s.RegisterActive(5, 10)
	s.RegisterActive(2, 3)
	s.RegisterActive(8, 20)
	txn, ver := s.MinActive()
	assert.Equal(t, uint64(2), txn)
	assert.Equal(t, uint64(3), ver)

	s.UnregisterActive(2)
	txn, ver = s.MinActive()
	assert.Equal(t, uint64(5), txn)
	assert.Equal(t, uint64(10), ver)
}

func TestIsPinnedMin(t *testing.T) {
	s := New()
	s.RegisterActive(2, 3)
	s.RegisterActive(5, 10)
	s.RegisterActive(8, 20)

	assert.True(t, s.IsPinnedMin(2), "2 is the oldest txn id, and strictly older than the next")
	assert.False(t, s.IsPinnedMin(5), "5 is not the oldest")
	assert.False(t, s.IsPinnedMin(8))

	s.UnregisterActive(2)
	assert.True(t, s.IsPinnedMin(5), "once 2 leaves, 5 becomes the oldest")
}

func TestIsPinnedMinFalseWhenSharingOldestVersion(t *testing.T) {
	s := New()
	s.RegisterActive(2, 3)
	s.RegisterActive(5, 3)
	assert.False(t, s.IsPinnedMin(2), "another active txn shares the same snapshot version, so 2 alone cannot be reclaimed past it")
}

func TestIsPinnedMinFalseWhenEmpty(t *testing.T) {
	s := New()
	assert.False(t, s.IsPinnedMin(1))
}
