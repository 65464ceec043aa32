package nogdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nogdb/nogdb-core/internal/errs"
	"github.com/nogdb/nogdb-core/internal/graph"
	"github.com/nogdb/nogdb-core/pkg/config"
	"github.com/nogdb/nogdb-core/pkg/logging"
)

func openTestContext(t *testing.T) *Context {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	ctx, err := Open(cfg, logging.Silent())
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func rid(class, pos uint32) graph.RecordId {
	return graph.RecordId{ClassId: class, PositionId: pos}
}

func TestTwoTransactionVisibility(t *testing.T) {
	ctx := openTestContext(t)
	v1 := rid(1, 1)

	before, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = w.CreateVertex(v1)
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	_, err = before.LookupVertex(v1)
	assert.ErrorIs(t, err, errs.NoExistVertex, "a reader opened before the commit must not see it")
	require.NoError(t, before.Commit())

	after, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)
	_, err = after.LookupVertex(v1)
	assert.NoError(t, err, "a reader opened after the commit must see it")
	require.NoError(t, after.Commit())
}

func TestCascadingEdgeDelete(t *testing.T) {
	ctx := openTestContext(t)
	a, b, c := rid(1, 1), rid(1, 2), rid(1, 3)
	ab, bc, ac := rid(2, 1), rid(2, 2), rid(2, 3)

	setup, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = setup.CreateVertex(a)
	require.NoError(t, err)
	_, err = setup.CreateVertex(b)
	require.NoError(t, err)
	_, err = setup.CreateVertex(c)
	require.NoError(t, err)
	_, err = setup.CreateEdge(ab, a, b)
	require.NoError(t, err)
	_, err = setup.CreateEdge(bc, b, c)
	require.NoError(t, err)
	_, err = setup.CreateEdge(ac, a, c)
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.DeleteVertex(b))
	require.NoError(t, w.Commit())

	r, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)
	out, err := r.OutEdges(a, 0)
	require.NoError(t, err)
	assert.Equal(t, []graph.RecordId{ac}, out)

	in, err := r.InEdges(c, 0)
	require.NoError(t, err)
	assert.Equal(t, []graph.RecordId{ac}, in)
	require.NoError(t, r.Commit())
}

func TestRelinkUnderConcurrentReader(t *testing.T) {
	ctx := openTestContext(t)
	a, b, c := rid(1, 1), rid(1, 2), rid(1, 3)
	e := rid(2, 1)

	setup, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	setup.CreateVertex(a)
	setup.CreateVertex(b)
	setup.CreateVertex(c)
	_, err = setup.CreateEdge(e, a, b)
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	r, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.RelinkDst(e, c))
	require.NoError(t, w.Commit())

	gotByR, err := r.TargetOf(e)
	require.NoError(t, err)
	assert.Equal(t, b, gotByR, "the already-open reader must still see the pre-relink target")
	require.NoError(t, r.Commit())

	after, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)
	gotByAfter, err := after.TargetOf(e)
	require.NoError(t, err)
	assert.Equal(t, c, gotByAfter, "a reader opened after the relink must see the new target")
	require.NoError(t, after.Commit())
}

func TestRollbackOfDelete(t *testing.T) {
	ctx := openTestContext(t)
	v := rid(1, 1)

	setup, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = setup.CreateVertex(v)
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.DeleteVertex(v))
	require.NoError(t, w.Rollback())

	r, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)
	_, err = r.LookupVertex(v)
	assert.NoError(t, err, "a rolled-back delete must leave the vertex visible")
	require.NoError(t, r.Commit())
}

func TestDeleteQueueDrainsWithNoActiveReaders(t *testing.T) {
	ctx := openTestContext(t)
	v := rid(1, 1)

	setup, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = setup.CreateVertex(v)
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.DeleteVertex(v))
	require.NoError(t, w.Commit())

	assert.Nil(t, ctx.graph.VertexCell(v), "with no active readers pinning an older snapshot, the commit itself must physically purge the deleted vertex")
	assert.Equal(t, int64(1), ctx.Metrics().VerticesReclaimed)
}

func TestDuplicateEdgeFails(t *testing.T) {
	ctx := openTestContext(t)
	a, b := rid(1, 1), rid(1, 2)
	e := rid(2, 1)

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = w.CreateEdge(e, a, b)
	require.NoError(t, err)

	_, err = w.CreateEdge(e, a, b)
	assert.ErrorIs(t, err, errs.DuplicateEdge)
	require.NoError(t, w.Commit())
}

func TestWriteOpRejectedOnReadOnlyTxn(t *testing.T) {
	ctx := openTestContext(t)
	r, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)

	_, err = r.CreateVertex(rid(1, 1))
	assert.ErrorIs(t, err, errs.InvalidTxnMode)
	require.NoError(t, r.Commit())
}

func TestOperationRejectedAfterCommit(t *testing.T) {
	ctx := openTestContext(t)
	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	_, err = w.CreateVertex(rid(1, 1))
	assert.ErrorIs(t, err, errs.TxnCompleted)
}

func TestAllocatePositionIdIsMonotonicPerClass(t *testing.T) {
	ctx := openTestContext(t)

	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	first, err := w.AllocatePositionId(7)
	require.NoError(t, err)
	second, err := w.AllocatePositionId(7)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	otherClass, err := w.AllocatePositionId(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), otherClass, "a different class starts its own counter at 1")
	require.NoError(t, w.Commit())

	w2, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	third, err := w2.AllocatePositionId(7)
	require.NoError(t, err)
	assert.Equal(t, second+1, third, "the counter persists across transactions")
	require.NoError(t, w2.Commit())
}

func TestCreateClassAndLookupByName(t *testing.T) {
	ctx := openTestContext(t)
	w, err := ctx.BeginTxn(ReadWrite)
	require.NoError(t, err)
	_, err = w.CreateClass(1, "Person")
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	r, err := ctx.BeginTxn(ReadOnly)
	require.NoError(t, err)
	found, err := r.LookupClassByName("Person")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), found.ClassId)
	require.NoError(t, r.Commit())
}
