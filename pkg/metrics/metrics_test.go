package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotReflectsCounters(t *testing.T) {
	c := New()
	c.Commits.Add(3)
	c.Rollbacks.Add(1)
	c.ReclamationPasses.Add(2)
	c.VerticesReclaimed.Add(10)

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Commits)
	assert.Equal(t, int64(1), snap.Rollbacks)
	assert.Equal(t, int64(2), snap.ReclamationPasses)
	assert.Equal(t, int64(10), snap.VerticesReclaimed)
	assert.Equal(t, int64(0), snap.EdgesReclaimed)
}
