// Txn is the base transaction every read or write goes through. It
// never stores an entity itself -- internal/graph and internal/schema
// already install staged vertices, edges, and class descriptors
// directly into their concurrent maps the moment they are created, so
// Txn's only bookkeeping job is remembering *which* record ids and
// class ids it touched this transaction, so Commit/Rollback know which
// cells to promote or unwind. VertexCell/EdgeCell/ClassCell are what
// make that possible without a second, transaction-local copy of the
// entity.
package nogdb

import (
	"strconv"

	"github.com/nogdb/nogdb-core/internal/errs"
	"github.com/nogdb/nogdb-core/internal/graph"
	"github.com/nogdb/nogdb-core/internal/kvengine"
	"github.com/nogdb/nogdb-core/internal/kvengine/badgerkv"
	"github.com/nogdb/nogdb-core/internal/schema"
	"github.com/nogdb/nogdb-core/internal/txnobject"
	"github.com/nogdb/nogdb-core/internal/version"
)

// Txn is a single unit of work against a Context, in either ReadOnly or
// ReadWrite mode. Not safe for concurrent use by multiple goroutines.
type Txn struct {
	ctx  *Context
	mode Mode

	txnID           uint64
	snapshotVersion version.VersionId
	versionID       version.VersionId

	engineTxn kvengine.Txn

	schemaInfo SchemaInfo

	stagedClasses  map[uint32]struct{}
	stagedVertices map[graph.RecordId]struct{}
	stagedEdges    map[graph.RecordId]struct{}

	completed           bool
	persistentCommitted bool
}

func (c *Context) openReadOnly() (*Txn, error) {
	var etxn kvengine.Txn
	if c.env != nil {
		t, err := c.env.BeginTxn(false)
		if err != nil {
			return nil, err
		}
		etxn = t
	}

	txnID := c.stat.AllocateTxnID()
	snapshot := c.stat.CurrentVersionID()
	c.stat.RegisterActive(txnID, snapshot)
	c.metrics.ActiveReaders.Add(1)

	return &Txn{
		ctx:             c,
		mode:            ReadOnly,
		txnID:           txnID,
		snapshotVersion: snapshot,
		engineTxn:       etxn,
	}, nil
}

func (c *Context) openReadWrite() (*Txn, error) {
	var etxn kvengine.Txn
	if c.env != nil {
		t, err := c.env.BeginTxn(true)
		if err != nil {
			return nil, err
		}
		etxn = t
	}

	// A shared acquire-then-release of the writer lock is a memory
	// barrier: it guarantees every promotion a prior writer made under
	// its own exclusive hold is visible to this transaction from here
	// on, without actually serializing concurrent opens against each
	// other.
	c.writerLock.RLock()
	c.writerLock.RUnlock()

	c.schemaInfoLock.RLock()
	info := c.schemaInfo.clone()
	c.schemaInfoLock.RUnlock()

	current := c.stat.CurrentVersionID()
	if current == ^uint64(0) {
		if etxn != nil {
			etxn.Abort()
		}
		return nil, errs.New(errs.TxnVersionMaxReached)
	}

	return &Txn{
		ctx:            c,
		mode:           ReadWrite,
		versionID:      current + 1,
		engineTxn:      etxn,
		schemaInfo:     info,
		stagedClasses:  make(map[uint32]struct{}),
		stagedVertices: make(map[graph.RecordId]struct{}),
		stagedEdges:    make(map[graph.RecordId]struct{}),
	}, nil
}

func (t *Txn) checkOpen() error {
	if t.completed {
		return errs.New(errs.TxnCompleted)
	}
	return nil
}

func (t *Txn) checkWritable() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.mode != ReadWrite {
		return errs.New(errs.InvalidTxnMode)
	}
	return nil
}

func (t *Txn) graphVis() graph.Visibility {
	if t.mode == ReadOnly {
		return graph.Visibility{ReadOnly: true, Snapshot: t.snapshotVersion}
	}
	return graph.Visibility{ReadOnly: false}
}

func (t *Txn) schemaVis() schema.Visibility {
	if t.mode == ReadOnly {
		return schema.Visibility{ReadOnly: true, Snapshot: t.snapshotVersion}
	}
	return schema.Visibility{ReadOnly: false}
}

const reservedPositionKey = 0xFF

func classDatabaseName(classID uint32) string {
	return "class:" + strconv.Itoa(int(classID))
}

// AllocatePositionId draws the next PositionId for classID from the
// persistent engine, maintaining a reserved counter key inside that
// class's own database so callers never have to coordinate id
// assignment themselves before calling CreateVertex/CreateEdge. It does
// not stage or create anything in the graph engine; the caller still
// builds the RecordId and passes it to CreateVertex/CreateEdge itself.
func (t *Txn) AllocatePositionId(classID uint32) (uint32, error) {
	if err := t.checkWritable(); err != nil {
		return 0, err
	}
	db, err := t.engineTxn.OpenDatabase(classDatabaseName(classID), true, false)
	if err != nil {
		return 0, errs.Wrap(errs.PersistentEngineFailure, err)
	}
	key := []byte{reservedPositionKey}
	raw, err := t.engineTxn.Get(db, key)
	if err != nil {
		return 0, errs.Wrap(errs.PersistentEngineFailure, err)
	}
	next := uint32(1)
	if raw != nil {
		next = badgerkv.DecodeUint32Key(raw)
	}
	if err := t.engineTxn.Put(db, key, badgerkv.EncodeUint32Key(next+1), false); err != nil {
		return 0, errs.Wrap(errs.PersistentEngineFailure, err)
	}
	return next, nil
}

// CreateVertex installs a new vertex at rid, uncommitted until Commit.
func (t *Txn) CreateVertex(rid graph.RecordId) (*graph.Vertex, error) {
	if err := t.checkWritable(); err != nil {
		return nil, err
	}
	v, ok := t.ctx.graph.CreateVertex(t.graphVis(), rid)
	if !ok {
		return nil, errs.New(errs.DuplicateVertex)
	}
	t.stagedVertices[rid] = struct{}{}
	return v, nil
}

// DeleteVertex removes rid and every edge incident to it.
func (t *Txn) DeleteVertex(rid graph.RecordId) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if t.ctx.graph.LookupVertex(t.graphVis(), rid) == nil {
		return errs.New(errs.NoExistVertex)
	}
	touched := t.ctx.graph.DeleteVertex(t.graphVis(), rid)
	t.stagedVertices[rid] = struct{}{}
	for _, e := range touched {
		t.stagedEdges[e.RID] = struct{}{}
	}
	return nil
}

// LookupVertex resolves rid under this transaction's visibility.
func (t *Txn) LookupVertex(rid graph.RecordId) (*graph.Vertex, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	v := t.ctx.graph.LookupVertex(t.graphVis(), rid)
	if v == nil {
		return nil, errs.New(errs.NoExistVertex)
	}
	return v, nil
}

// CreateEdge stages a new edge at rid between srcRid and dstRid, auto
// creating either endpoint if it does not already exist.
func (t *Txn) CreateEdge(rid, srcRid, dstRid graph.RecordId) (*graph.Edge, error) {
	if err := t.checkWritable(); err != nil {
		return nil, err
	}
	edge, srcCreated, dstCreated, ok := t.ctx.graph.CreateEdge(t.graphVis(), rid, srcRid, dstRid)
	if !ok {
		return nil, errs.New(errs.DuplicateEdge)
	}
	t.stagedEdges[rid] = struct{}{}
	if srcCreated {
		t.stagedVertices[srcRid] = struct{}{}
	}
	if dstCreated {
		t.stagedVertices[dstRid] = struct{}{}
	}
	return edge, nil
}

// DeleteEdge removes rid, unlinking it from both endpoints' adjacency.
func (t *Txn) DeleteEdge(rid graph.RecordId) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	edge := t.ctx.graph.DeleteEdge(t.graphVis(), rid)
	if edge == nil {
		return errs.New(errs.NoExistEdge)
	}
	t.stagedEdges[rid] = struct{}{}
	return nil
}

// LookupEdge resolves rid under this transaction's visibility.
func (t *Txn) LookupEdge(rid graph.RecordId) (*graph.Edge, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	e := t.ctx.graph.LookupEdge(t.graphVis(), rid)
	if e == nil {
		return nil, errs.New(errs.NoExistEdge)
	}
	return e, nil
}

// RelinkSrc moves rid's source endpoint to newSrcRid.
func (t *Txn) RelinkSrc(rid, newSrcRid graph.RecordId) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	_, created, ok := t.ctx.graph.RelinkSrc(t.graphVis(), rid, newSrcRid)
	if !ok {
		return errs.New(errs.NoExistEdge)
	}
	t.stagedEdges[rid] = struct{}{}
	if created {
		t.stagedVertices[newSrcRid] = struct{}{}
	}
	return nil
}

// RelinkDst moves rid's target endpoint to newDstRid.
func (t *Txn) RelinkDst(rid, newDstRid graph.RecordId) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	_, created, ok := t.ctx.graph.RelinkDst(t.graphVis(), rid, newDstRid)
	if !ok {
		return errs.New(errs.NoExistEdge)
	}
	t.stagedEdges[rid] = struct{}{}
	if created {
		t.stagedVertices[newDstRid] = struct{}{}
	}
	return nil
}

// SourceOf and TargetOf read an edge's endpoints. Available in either
// transaction mode.
func (t *Txn) SourceOf(rid graph.RecordId) (graph.RecordId, error) {
	if err := t.checkOpen(); err != nil {
		return graph.RecordId{}, err
	}
	src, ok := t.ctx.graph.SourceOf(t.graphVis(), rid)
	if !ok {
		return graph.RecordId{}, errs.New(errs.NoExistEdge)
	}
	return src, nil
}

func (t *Txn) TargetOf(rid graph.RecordId) (graph.RecordId, error) {
	if err := t.checkOpen(); err != nil {
		return graph.RecordId{}, err
	}
	dst, ok := t.ctx.graph.TargetOf(t.graphVis(), rid)
	if !ok {
		return graph.RecordId{}, errs.New(errs.NoExistEdge)
	}
	return dst, nil
}

// InEdges, OutEdges, and AllEdges enumerate rid's adjacent edges,
// optionally restricted to one edge class (pass 0 for "all classes").
func (t *Txn) InEdges(rid graph.RecordId, classFilter uint32) ([]graph.RecordId, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	edges, ok := t.ctx.graph.InEdges(t.graphVis(), rid, classFilter)
	if !ok {
		return nil, errs.New(errs.NoExistVertex)
	}
	return edges, nil
}

func (t *Txn) OutEdges(rid graph.RecordId, classFilter uint32) ([]graph.RecordId, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	edges, ok := t.ctx.graph.OutEdges(t.graphVis(), rid, classFilter)
	if !ok {
		return nil, errs.New(errs.NoExistVertex)
	}
	return edges, nil
}

func (t *Txn) AllEdges(rid graph.RecordId, classFilter uint32) ([]graph.RecordId, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	edges, ok := t.ctx.graph.AllEdges(t.graphVis(), rid, classFilter)
	if !ok {
		return nil, errs.New(errs.NoExistVertex)
	}
	return edges, nil
}

// CreateClass stages a new class descriptor at classID.
func (t *Txn) CreateClass(classID uint32, name string) (*schema.ClassDescriptor, error) {
	if err := t.checkWritable(); err != nil {
		return nil, err
	}
	d, ok := t.ctx.schema.CreateClass(t.schemaVis(), classID, name)
	if !ok {
		return nil, errs.New(errs.DuplicateClass)
	}
	t.stagedClasses[classID] = struct{}{}
	if t.schemaInfo.NameToID == nil {
		t.schemaInfo.NameToID = make(map[string]uint32)
	}
	t.schemaInfo.NameToID[name] = classID
	return d, nil
}

// DropClass removes classID.
func (t *Txn) DropClass(classID uint32) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	d := t.ctx.schema.Lookup(t.schemaVis(), classID)
	if d == nil {
		return errs.New(errs.NoExistClass)
	}
	t.ctx.schema.DropClass(t.schemaVis(), classID)
	t.stagedClasses[classID] = struct{}{}
	if name, ok := d.Name.ReadLatest(); ok {
		delete(t.schemaInfo.NameToID, name)
	}
	return nil
}

// LookupClass resolves classID under this transaction's visibility.
func (t *Txn) LookupClass(classID uint32) (*schema.ClassDescriptor, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	d := t.ctx.schema.Lookup(t.schemaVis(), classID)
	if d == nil {
		return nil, errs.New(errs.NoExistClass)
	}
	return d, nil
}

// LookupClassByName resolves a class descriptor by name.
func (t *Txn) LookupClassByName(name string) (*schema.ClassDescriptor, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	d := t.ctx.schema.LookupByName(t.schemaVis(), name)
	if d == nil {
		return nil, errs.New(errs.NoExistClass)
	}
	return d, nil
}

// Commit finalizes the transaction, per the read-only or read-write
// commit procedure appropriate to its mode.
func (t *Txn) Commit() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.mode == ReadOnly {
		return t.commitReadOnly()
	}
	if err := t.commitReadWrite(); err != nil {
		t.Rollback()
		return err
	}
	t.completed = true
	t.ctx.metrics.Commits.Add(1)
	return nil
}

func (t *Txn) commitReadOnly() error {
	if t.ctx.stat.IsPinnedMin(t.txnID) {
		t.ctx.schema.PruneBelow(t.snapshotVersion + 1)
		t.ctx.graph.PruneBelow(t.snapshotVersion + 1)
		t.ctx.metrics.ReclamationPasses.Add(1)
	}
	t.ctx.stat.UnregisterActive(t.txnID)
	t.ctx.metrics.ActiveReaders.Add(-1)
	if t.engineTxn != nil {
		t.engineTxn.Abort()
	}
	t.completed = true
	return nil
}

func (t *Txn) commitReadWrite() error {
	t.ctx.writerLock.Lock()
	defer t.ctx.writerLock.Unlock()

	if t.engineTxn != nil {
		if err := t.engineTxn.Commit(); err != nil {
			return errs.Wrap(errs.PersistentEngineFailure, err)
		}
		t.persistentCommitted = true
	}

	minTxn, minSnapshot := t.ctx.stat.MinActive()
	pruneBelow := t.versionID - 1
	if minTxn != 0 {
		pruneBelow = minSnapshot
	}

	for classID := range t.stagedClasses {
		cell := t.ctx.schema.ClassCell(classID)
		if cell == nil {
			continue
		}
		d, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := d.State.GetState()
		switch status {
		case txnobject.UncommittedDelete:
			t.ctx.schema.DeleteQueue().Enqueue(t.versionID, classID)
		case txnobject.UncommittedCreate:
			// already installed into the schema's concurrent map at
			// CreateClass time; nothing further to install here.
		default:
			d.Name.PruneBelow(pruneBelow)
			d.Properties.PruneBelow(pruneBelow)
			d.Super.PruneBelow(pruneBelow)
			d.Sub.PruneBelow(pruneBelow)
		}
		d.State.PromoteState(t.versionID)
		d.Name.Promote(t.versionID)
		d.Properties.Promote(t.versionID)
		d.Super.Promote(t.versionID)
		d.Sub.Promote(t.versionID)
		cell.Promote(t.versionID)
	}

	for rid := range t.stagedVertices {
		cell := t.ctx.graph.VertexCell(rid)
		if cell == nil {
			continue
		}
		v, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := v.State.GetState()
		if status == txnobject.UncommittedDelete {
			t.ctx.graph.DeletedVertices().Enqueue(t.versionID, rid)
		}
		v.State.PromoteState(t.versionID)
		cell.Promote(t.versionID)
	}

	for rid := range t.stagedEdges {
		cell := t.ctx.graph.EdgeCell(rid)
		if cell == nil {
			continue
		}
		e, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := e.State.GetState()
		if status == txnobject.UncommittedDelete {
			t.ctx.graph.DeletedEdges().Enqueue(t.versionID, rid)
		} else {
			e.Source.PruneBelow(pruneBelow)
			e.Target.PruneBelow(pruneBelow)
		}
		srcCandidates := endpointCandidates(e.Source)
		dstCandidates := endpointCandidates(e.Target)
		e.State.PromoteState(t.versionID)
		e.Source.Promote(t.versionID)
		e.Target.Promote(t.versionID)
		cell.Promote(t.versionID)

		for _, src := range srcCandidates {
			if srcVertex := t.ctx.graph.LookupVertex(graph.Visibility{ReadOnly: false}, src); srcVertex != nil {
				if adjCell := srcVertex.Out.GetCell(rid.ClassId, rid.PositionId); adjCell != nil {
					adjCell.PruneBelow(pruneBelow)
					adjCell.Promote(t.versionID)
				}
			}
		}
		for _, dst := range dstCandidates {
			if dstVertex := t.ctx.graph.LookupVertex(graph.Visibility{ReadOnly: false}, dst); dstVertex != nil {
				if adjCell := dstVertex.In.GetCell(rid.ClassId, rid.PositionId); adjCell != nil {
					adjCell.PruneBelow(pruneBelow)
					adjCell.Promote(t.versionID)
				}
			}
		}
	}

	anyChange := len(t.stagedClasses) > 0 || len(t.stagedVertices) > 0 || len(t.stagedEdges) > 0
	if anyChange {
		t.ctx.schemaInfoLock.Lock()
		t.ctx.schemaInfo = t.schemaInfo
		t.ctx.schemaInfoLock.Unlock()
	}

	t.ctx.stat.AdvanceVersionID()

	if stillMinTxn, _ := t.ctx.stat.MinActive(); stillMinTxn == 0 {
		drainedVertices := t.ctx.graph.DeletedVertices().PopThrough(t.versionID)
		t.ctx.graph.ForcePurgeVertices(drainedVertices)
		t.ctx.metrics.VerticesReclaimed.Add(int64(len(drainedVertices)))

		drainedEdges := t.ctx.graph.DeletedEdges().PopThrough(t.versionID)
		t.ctx.graph.ForcePurgeEdges(drainedEdges)
		t.ctx.metrics.EdgesReclaimed.Add(int64(len(drainedEdges)))

		drainedClasses := t.ctx.schema.DeleteQueue().PopThrough(t.versionID)
		t.ctx.schema.ForcePurge(drainedClasses)
		t.ctx.metrics.ClassesReclaimed.Add(int64(len(drainedClasses)))

		if len(drainedVertices)+len(drainedEdges)+len(drainedClasses) > 0 {
			t.ctx.metrics.ReclamationPasses.Add(1)
		}
	}

	return nil
}

// Rollback discards every change staged by this transaction. Safe to
// call on an already-completed transaction (a no-op). Go has no
// destructor to invoke this implicitly -- callers must defer it
// explicitly after BeginTxn.
func (t *Txn) Rollback() error {
	if t.completed {
		return nil
	}
	if t.mode == ReadWrite {
		t.rollbackVertices()
		t.rollbackEdges()
		t.rollbackClasses()
		if t.engineTxn != nil && !t.persistentCommitted {
			t.engineTxn.Abort()
		}
		t.ctx.metrics.Rollbacks.Add(1)
	} else {
		t.ctx.stat.UnregisterActive(t.txnID)
		t.ctx.metrics.ActiveReaders.Add(-1)
		if t.engineTxn != nil {
			t.engineTxn.Abort()
		}
	}
	t.completed = true
	return nil
}

func (t *Txn) rollbackVertices() {
	for rid := range t.stagedVertices {
		cell := t.ctx.graph.VertexCell(rid)
		if cell == nil {
			continue
		}
		v, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := v.State.GetState()
		if status == txnobject.UncommittedCreate {
			t.ctx.graph.ForcePurgeVertices([]graph.RecordId{rid})
			continue
		}
		if status == txnobject.UncommittedDelete {
			v.State.SetStatus(txnobject.CommittedCreate)
		}
	}
}

func (t *Txn) rollbackEdges() {
	for rid := range t.stagedEdges {
		cell := t.ctx.graph.EdgeCell(rid)
		if cell == nil {
			continue
		}
		e, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := e.State.GetState()
		purge := status == txnobject.UncommittedCreate
		if status == txnobject.UncommittedDelete {
			e.State.SetStatus(txnobject.CommittedCreate)
		}

		for _, src := range endpointCandidates(e.Source) {
			if srcVertex := t.ctx.graph.LookupVertex(graph.Visibility{ReadOnly: false}, src); srcVertex != nil {
				if adjCell := srcVertex.Out.GetCell(rid.ClassId, rid.PositionId); adjCell != nil {
					adjCell.DisableStaged()
				}
			}
		}
		for _, dst := range endpointCandidates(e.Target) {
			if dstVertex := t.ctx.graph.LookupVertex(graph.Visibility{ReadOnly: false}, dst); dstVertex != nil {
				if adjCell := dstVertex.In.GetCell(rid.ClassId, rid.PositionId); adjCell != nil {
					adjCell.DisableStaged()
				}
			}
		}
		e.Source.DisableStaged()
		e.Target.DisableStaged()

		if purge {
			t.ctx.graph.ForcePurgeEdges([]graph.RecordId{rid})
		}
	}
}

// endpointCandidates returns both the staged (unstable) and last
// promoted (stable) resolution of an edge endpoint cell, deduplicated.
// A relink stages a new endpoint while the old one is still the stable
// value, so commit and rollback must both be able to reach the
// uncommitted adjacency edit on either one.
func endpointCandidates(cell *version.Cell[graph.RecordId]) []graph.RecordId {
	var out []graph.RecordId
	if v, ok := cell.ReadUnstable(); ok {
		out = append(out, v)
	}
	if v, ok := cell.ReadStableLatest(); ok {
		if len(out) == 0 || out[0] != v {
			out = append(out, v)
		}
	}
	return out
}

func (t *Txn) rollbackClasses() {
	for classID := range t.stagedClasses {
		cell := t.ctx.schema.ClassCell(classID)
		if cell == nil {
			continue
		}
		d, ok := cell.ReadLatest()
		if !ok {
			continue
		}
		_, status := d.State.GetState()
		if status == txnobject.UncommittedCreate {
			t.ctx.schema.ForcePurge([]uint32{classID})
			continue
		}
		if status == txnobject.UncommittedDelete {
			d.State.SetStatus(txnobject.CommittedCreate)
		}
		d.Name.DisableStaged()
		d.Properties.DisableStaged()
		d.Super.DisableStaged()
		d.Sub.DisableStaged()
	}
}
