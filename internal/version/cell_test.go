package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellStageAndReadLatest(t *testing.T) {
	c := New[string]()
	_, ok := c.ReadLatest()
	require.False(t, ok)

	c.Stage("a")
	v, ok := c.ReadLatest()
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestCellPromoteAppendsStableInOrder(t *testing.T) {
	c := New[int]()
	c.Stage(1)
	c.Promote(10)
	c.Stage(2)
	c.Promote(20)
	c.Stage(3)
	c.Promote(30)

	v, ok := c.ReadAt(10)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.ReadAt(15)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.ReadAt(20)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.ReadAt(30)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = c.ReadAt(5)
	assert.False(t, ok)
}

func TestCellReadAtNeverSeesUnstable(t *testing.T) {
	c := New[int]()
	c.Stage(1)
	c.Promote(1)
	c.Stage(99) // a writer's in-flight, uncommitted write
	v, ok := c.ReadAt(1)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCellDisableStagedIsRollback(t *testing.T) {
	c := New[int]()
	c.Stage(1)
	c.Promote(1)
	c.Stage(2)
	c.DisableStaged()
	v, ok := c.ReadLatest()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCellDeleteLatestOnStagedValue(t *testing.T) {
	c := New[int]()
	c.Stage(5)
	c.DeleteLatest()
	_, ok := c.ReadLatest()
	assert.False(t, ok)
}

func TestCellDeleteLatestPromotesStableThenDeletes(t *testing.T) {
	c := New[int]()
	c.Stage(5)
	c.Promote(1)
	// nothing staged; deleteLatest should pull the most recent stable
	// value into the unstable slot and mark it inactive.
	c.DeleteLatest()
	_, ok := c.ReadLatest()
	assert.False(t, ok)
	c.Promote(2)
	_, ok = c.ReadAt(2)
	assert.False(t, ok)
	v, ok := c.ReadAt(1)
	require.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestCellPruneBelowKeepsMostRecentEntry(t *testing.T) {
	c := New[int]()
	for _, ver := range []VersionId{1, 2, 3} {
		c.Stage(int(ver))
		c.Promote(ver)
	}
	remaining := c.PruneBelow(3)
	assert.Equal(t, 1, remaining)
	v, ok := c.ReadAt(3)
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCellPruneBelowEmptiesInactiveTail(t *testing.T) {
	c := New[int]()
	c.Stage(1)
	c.Promote(1)
	c.DeleteLatest()
	c.Promote(2)
	remaining := c.PruneBelow(3)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, c.StableLen())
}
