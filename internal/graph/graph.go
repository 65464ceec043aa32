// Package graph is the topology engine: vertex and edge lifecycle plus
// adjacency queries (createVertex/deleteVertex, createEdge/deleteEdge,
// getEdgeIn/getEdgeOut, lookupVertex/lookupEdge,
// forceDeleteVertex(es)/forceDeleteEdge(es)).
//
// Every operation here takes a visibility context (snapshot version for a
// read-only caller, or "read-write, consult the uncommitted set" for a
// writer) supplied by pkg/nogdb's Txn -- this package itself never opens
// or commits a transaction, it just applies the visibility rule it is
// told to.
package graph

import (
	"sort"

	"github.com/nogdb/nogdb-core/internal/adjacency"
	"github.com/nogdb/nogdb-core/internal/delqueue"
	"github.com/nogdb/nogdb-core/internal/shardmap"
	"github.com/nogdb/nogdb-core/internal/txnobject"
	"github.com/nogdb/nogdb-core/internal/version"
)

// RecordId names a vertex or an edge: the class it belongs to plus its
// position within that class. Comparable, so it is usable as a map key
// directly -- no custom hash/equality functor needed the way the
// original's std::pair<ClassId,PositionId> required one.
type RecordId struct {
	ClassId    uint32
	PositionId uint32
}

// Vertex is one graph vertex: its commit-visibility state plus its
// incoming and outgoing adjacency sets. In/Out are keyed by edge class id
// (outer) then edge position id (inner), and hold only enough to
// re-resolve the edge -- see internal/adjacency's package doc for why
// that counts as a weak reference.
type Vertex struct {
	RID   RecordId
	State txnobject.Object
	In    *adjacency.Map[uint32, *Edge]
	Out   *adjacency.Map[uint32, *Edge]
}

func newVertex(rid RecordId) *Vertex {
	return &Vertex{
		RID: rid,
		In:  adjacency.New[uint32, *Edge](),
		Out: adjacency.New[uint32, *Edge](),
	}
}

// Edge is one graph edge: its commit-visibility state plus versioned
// source/target endpoint cells. The endpoint cells are versioned (rather
// than plain fields) so relinkSrc/relinkDst can stage a new endpoint
// without disturbing a concurrent reader's already-resolved view.
type Edge struct {
	RID    RecordId
	State  txnobject.Object
	Source *version.Cell[RecordId]
	Target *version.Cell[RecordId]
}

func newEdge(rid, src, dst RecordId) *Edge {
	return &Edge{
		RID:    rid,
		Source: version.NewWithValue(src),
		Target: version.NewWithValue(dst),
	}
}

// Visibility is how the graph engine decides whether a caller may see a
// given vertex or edge: either a fixed read-only snapshot, or the
// read-write view ("give me whatever the active writer just staged").
type Visibility struct {
	ReadOnly bool
	Snapshot version.VersionId
}

func (v Visibility) visible(o *txnobject.Object) bool {
	if v.ReadOnly {
		return !txnobject.IsInvisibleTo(o, v.Snapshot)
	}
	return !txnobject.IsInvisibleToWriter(o)
}

// Graph owns the global vertex and edge maps plus their delete queues.
// One Graph per Context; pkg/nogdb's commit/rollback path drives the
// state transitions recorded here.
type Graph struct {
	vertices *shardmap.Map[RecordId, *Vertex]
	edges    *shardmap.Map[RecordId, *Edge]

	deletedVertices *delqueue.Queue[RecordId]
	deletedEdges    *delqueue.Queue[RecordId]
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		vertices:        shardmap.New[RecordId, *Vertex](),
		edges:           shardmap.New[RecordId, *Edge](),
		deletedVertices: delqueue.New[RecordId](),
		deletedEdges:    delqueue.New[RecordId](),
	}
}

// LookupVertex resolves rid under vis, returning nil if it does not exist
// or is not visible.
func (g *Graph) LookupVertex(vis Visibility, rid RecordId) *Vertex {
	cell := g.vertices.Get(rid)
	if cell == nil {
		return nil
	}
	v, ok := cell.ReadLatest()
	if !ok {
		return nil
	}
	if !vis.visible(&v.State) {
		return nil
	}
	return v
}

// LookupEdge resolves rid under vis, returning nil if it does not exist
// or is not visible.
func (g *Graph) LookupEdge(vis Visibility, rid RecordId) *Edge {
	cell := g.edges.Get(rid)
	if cell == nil {
		return nil
	}
	e, ok := cell.ReadLatest()
	if !ok {
		return nil
	}
	if !vis.visible(&e.State) {
		return nil
	}
	return e
}

// CreateVertex stages a new vertex at rid with status uncommittedCreate.
// Returns false without effect if a visible vertex already occupies rid.
func (g *Graph) CreateVertex(vis Visibility, rid RecordId) (*Vertex, bool) {
	if g.LookupVertex(vis, rid) != nil {
		return nil, false
	}
	v := newVertex(rid)
	g.vertices.Insert(rid, v)
	return v, true
}

// DeleteVertex removes every adjacency edge (in and out) of rid, then
// either drops the vertex from the map (it was never committed) or flips
// it to uncommittedDelete. No-op if rid is not visible. Returns every
// edge the cascade touched, so the caller (pkg/nogdb's Txn) can stage
// each one for its own commit/rollback bookkeeping exactly as if it had
// called DeleteEdge on it directly.
func (g *Graph) DeleteVertex(vis Visibility, rid RecordId) []*Edge {
	vertex := g.LookupVertex(vis, rid)
	if vertex == nil {
		return nil
	}
	var touched []*Edge
	for classID, posIDs := range vertex.In.Keys() {
		for _, posID := range posIDs {
			if e := g.deleteAdjacentEdge(vertex.In, classID, posID, func(e *Edge) {
				if src, ok := e.Source.ReadLatest(); ok {
					if srcVertex := g.LookupVertex(Visibility{ReadOnly: false}, src); srcVertex != nil {
						srcVertex.Out.Erase(e.RID.ClassId, e.RID.PositionId)
					}
				}
			}); e != nil {
				touched = append(touched, e)
			}
		}
	}
	for classID, posIDs := range vertex.Out.Keys() {
		for _, posID := range posIDs {
			if e := g.deleteAdjacentEdge(vertex.Out, classID, posID, func(e *Edge) {
				if dst, ok := e.Target.ReadLatest(); ok {
					if dstVertex := g.LookupVertex(Visibility{ReadOnly: false}, dst); dstVertex != nil {
						dstVertex.In.Erase(e.RID.ClassId, e.RID.PositionId)
					}
				}
			}); e != nil {
				touched = append(touched, e)
			}
		}
	}
	g.dropOrMarkDeleted(&vertex.State, rid, g.deletedVertices)
	return touched
}

// deleteAdjacentEdge resolves the edge at (classID, posID) in the given
// adjacency map, unlinks it from its other endpoint via unlink, then
// drops or marks it deleted the same way a direct deleteEdge would.
// Returns the edge touched, or nil if there was nothing to resolve.
func (g *Graph) deleteAdjacentEdge(adj *adjacency.Map[uint32, *Edge], classID, posID uint32, unlink func(*Edge)) *Edge {
	edge, ok := adj.Find(classID, posID, g.resolveEdge)
	if !ok {
		return nil
	}
	unlink(edge)
	g.dropOrMarkDeleted(&edge.State, edge.RID, g.deletedEdges)
	return edge
}

func (g *Graph) resolveEdge(ref adjacency.Ref[uint32]) (*Edge, bool) {
	return g.LookupEdge(Visibility{ReadOnly: false}, RecordId{ClassId: ref.ClassID, PositionId: ref.Position})
}

func (g *Graph) dropOrMarkDeleted(state *txnobject.Object, rid RecordId, queue *delqueue.Queue[RecordId]) {
	_, status := state.GetState()
	if status == txnobject.UncommittedCreate {
		if queue == g.deletedVertices {
			g.vertices.ForcePurge(rid)
		} else {
			g.edges.ForcePurge(rid)
		}
		return
	}
	state.SetStatus(txnobject.UncommittedDelete)
}

// CreateEdge fails with ok=false if rid is already a visible edge.
// Missing endpoints are auto-created as uncommitted vertices (supports
// batched bulk loads).
// srcCreated/dstCreated report which endpoints (if any) this call itself
// brought into existence, so pkg/nogdb's Txn can stage them alongside the
// edge for its own commit/rollback bookkeeping.
func (g *Graph) CreateEdge(vis Visibility, rid, srcRid, dstRid RecordId) (edge *Edge, srcCreated, dstCreated bool, ok bool) {
	if g.LookupEdge(vis, rid) != nil {
		return nil, false, false, false
	}
	if g.LookupVertex(vis, srcRid) == nil {
		g.CreateVertex(vis, srcRid)
		srcCreated = true
	}
	if g.LookupVertex(vis, dstRid) == nil {
		g.CreateVertex(vis, dstRid)
		dstCreated = true
	}
	edge = newEdge(rid, srcRid, dstRid)
	g.edges.Insert(rid, edge)

	ref := adjacency.Ref[uint32]{ClassID: rid.ClassId, Position: rid.PositionId}
	if srcVertex := g.LookupVertex(Visibility{ReadOnly: false}, srcRid); srcVertex != nil {
		srcVertex.Out.Insert(rid.ClassId, rid.PositionId, ref)
	}
	if dstVertex := g.LookupVertex(Visibility{ReadOnly: false}, dstRid); dstVertex != nil {
		dstVertex.In.Insert(rid.ClassId, rid.PositionId, ref)
	}
	return edge, srcCreated, dstCreated, true
}

// DeleteEdge erases rid from both endpoints' adjacency maps at their
// latest version, then drops or marks the edge deleted. Returns nil if
// rid was not visible, otherwise the edge that was removed so the caller
// can stage it.
func (g *Graph) DeleteEdge(vis Visibility, rid RecordId) *Edge {
	edge := g.LookupEdge(vis, rid)
	if edge == nil {
		return nil
	}
	if src, ok := edge.Source.ReadLatest(); ok {
		if srcVertex := g.LookupVertex(Visibility{ReadOnly: false}, src); srcVertex != nil {
			srcVertex.Out.Erase(rid.ClassId, rid.PositionId)
		}
	}
	if dst, ok := edge.Target.ReadLatest(); ok {
		if dstVertex := g.LookupVertex(Visibility{ReadOnly: false}, dst); dstVertex != nil {
			dstVertex.In.Erase(rid.ClassId, rid.PositionId)
		}
	}
	g.dropOrMarkDeleted(&edge.State, rid, g.deletedEdges)
	return edge
}

// RelinkSrc moves rid's source endpoint to newSrcRid: erase the old
// source's out-adjacency entry, stage the new reference, insert into the
// new source's out-adjacency. newSrcRid is auto-created as an
// uncommitted vertex if it does not already exist, the same bulk-load
// convenience createEdge gives its endpoints -- vertexCreated reports
// whether that happened, so the caller can stage it. Fails with ok=false
// if rid is not visible.
func (g *Graph) RelinkSrc(vis Visibility, rid, newSrcRid RecordId) (newVertex *Vertex, vertexCreated, ok bool) {
	edge := g.LookupEdge(vis, rid)
	if edge == nil {
		return nil, false, false
	}
	if oldSrc, ok := edge.Source.ReadLatest(); ok {
		if oldVertex := g.LookupVertex(Visibility{ReadOnly: false}, oldSrc); oldVertex != nil {
			oldVertex.Out.Erase(rid.ClassId, rid.PositionId)
		}
	}
	newVertex = g.LookupVertex(Visibility{ReadOnly: false}, newSrcRid)
	if newVertex == nil {
		newVertex, _ = g.CreateVertex(Visibility{ReadOnly: false}, newSrcRid)
		vertexCreated = true
	}
	edge.Source.Stage(newSrcRid)
	ref := adjacency.Ref[uint32]{ClassID: rid.ClassId, Position: rid.PositionId}
	newVertex.Out.Insert(rid.ClassId, rid.PositionId, ref)
	return newVertex, vertexCreated, true
}

// RelinkDst is RelinkSrc's mirror image for the target endpoint.
func (g *Graph) RelinkDst(vis Visibility, rid, newDstRid RecordId) (newVertex *Vertex, vertexCreated, ok bool) {
	edge := g.LookupEdge(vis, rid)
	if edge == nil {
		return nil, false, false
	}
	if oldDst, ok := edge.Target.ReadLatest(); ok {
		if oldVertex := g.LookupVertex(Visibility{ReadOnly: false}, oldDst); oldVertex != nil {
			oldVertex.In.Erase(rid.ClassId, rid.PositionId)
		}
	}
	newVertex = g.LookupVertex(Visibility{ReadOnly: false}, newDstRid)
	if newVertex == nil {
		newVertex, _ = g.CreateVertex(Visibility{ReadOnly: false}, newDstRid)
		vertexCreated = true
	}
	edge.Target.Stage(newDstRid)
	ref := adjacency.Ref[uint32]{ClassID: rid.ClassId, Position: rid.PositionId}
	newVertex.In.Insert(rid.ClassId, rid.PositionId, ref)
	return newVertex, vertexCreated, true
}

// SourceOf and TargetOf read an edge's endpoint under vis's visibility
// rule: a read-only caller sees the endpoint as of its snapshot, a
// writer sees whatever is currently staged.
func (g *Graph) SourceOf(vis Visibility, rid RecordId) (RecordId, bool) {
	edge := g.LookupEdge(vis, rid)
	if edge == nil {
		return RecordId{}, false
	}
	if vis.ReadOnly {
		return edge.Source.ReadAt(vis.Snapshot)
	}
	return edge.Source.ReadLatest()
}

func (g *Graph) TargetOf(vis Visibility, rid RecordId) (RecordId, bool) {
	edge := g.LookupEdge(vis, rid)
	if edge == nil {
		return RecordId{}, false
	}
	if vis.ReadOnly {
		return edge.Target.ReadAt(vis.Snapshot)
	}
	return edge.Target.ReadLatest()
}

// classFilter, when non-zero, restricts enumeration to one edge class.
// Each adjacent edge is resolved under vis, so a caller only gets back
// edges it may see.
func (g *Graph) enumerate(vis Visibility, adj *adjacency.Map[uint32, *Edge], classFilter uint32) []RecordId {
	var result []RecordId
	classes := adj.ClassKeys()
	if classFilter != 0 {
		classes = []uint32{classFilter}
	}
	resolve := func(ref adjacency.Ref[uint32]) (*Edge, bool) {
		e := g.LookupEdge(vis, RecordId{ClassId: ref.ClassID, PositionId: ref.Position})
		return e, e != nil
	}
	for _, classID := range classes {
		for _, posID := range adj.PositionKeys(classID) {
			var edge *Edge
			var ok bool
			if vis.ReadOnly {
				edge, ok = adj.FindAt(vis.Snapshot, classID, posID, resolve)
			} else {
				edge, ok = adj.Find(classID, posID, resolve)
			}
			if ok {
				result = append(result, edge.RID)
			}
		}
	}
	return result
}

// InEdges enumerates rid's incoming edges, optionally restricted to
// classFilter (pass 0 for "all classes").
func (g *Graph) InEdges(vis Visibility, rid RecordId, classFilter uint32) ([]RecordId, bool) {
	vertex := g.LookupVertex(vis, rid)
	if vertex == nil {
		return nil, false
	}
	return g.enumerate(vis, vertex.In, classFilter), true
}

// OutEdges is InEdges' mirror image over the outgoing adjacency set.
func (g *Graph) OutEdges(vis Visibility, rid RecordId, classFilter uint32) ([]RecordId, bool) {
	vertex := g.LookupVertex(vis, rid)
	if vertex == nil {
		return nil, false
	}
	return g.enumerate(vis, vertex.Out, classFilter), true
}

// AllEdges merges InEdges and OutEdges, sorted by (classId, positionId)
// and deduplicated so a self-loop edge is reported once.
func (g *Graph) AllEdges(vis Visibility, rid RecordId, classFilter uint32) ([]RecordId, bool) {
	vertex := g.LookupVertex(vis, rid)
	if vertex == nil {
		return nil, false
	}
	merged := append(g.enumerate(vis, vertex.In, classFilter), g.enumerate(vis, vertex.Out, classFilter)...)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ClassId != merged[j].ClassId {
			return merged[i].ClassId < merged[j].ClassId
		}
		return merged[i].PositionId < merged[j].PositionId
	})
	result := merged[:0]
	for i, rid := range merged {
		if i == 0 || rid != result[len(result)-1] {
			result = append(result, rid)
		}
	}
	return result, true
}

// InClasses, OutClasses, and AllClasses are the getEdgeClassIn/Out/InOut
// equivalents: they return the distinct edge classes actually present
// among the resolvable adjacency entries, not just every class id ever
// inserted (a class whose only entries are all reclaimed is omitted).
func (g *Graph) InClasses(vis Visibility, rid RecordId) ([]uint32, bool) {
	edges, ok := g.InEdges(vis, rid, 0)
	if !ok {
		return nil, false
	}
	return distinctClasses(edges), true
}

func (g *Graph) OutClasses(vis Visibility, rid RecordId) ([]uint32, bool) {
	edges, ok := g.OutEdges(vis, rid, 0)
	if !ok {
		return nil, false
	}
	return distinctClasses(edges), true
}

func (g *Graph) AllClasses(vis Visibility, rid RecordId) ([]uint32, bool) {
	edges, ok := g.AllEdges(vis, rid, 0)
	if !ok {
		return nil, false
	}
	return distinctClasses(edges), true
}

func distinctClasses(rids []RecordId) []uint32 {
	seen := make(map[uint32]bool)
	var result []uint32
	for _, rid := range rids {
		if !seen[rid.ClassId] {
			seen[rid.ClassId] = true
			result = append(result, rid.ClassId)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// VertexCount and EdgeCount report how many entries are currently
// installed in the respective maps, including entities not yet visible
// to any reader. Used by the stat CLI command.
func (g *Graph) VertexCount() int {
	return g.vertices.Len()
}

func (g *Graph) EdgeCount() int {
	return g.edges.Len()
}

// VertexCell and EdgeCell expose the raw versioned cell for a rid,
// used by the commit path to prune and promote state directly rather
// than re-deriving it through a visibility check.
func (g *Graph) VertexCell(rid RecordId) *version.Cell[*Vertex] {
	return g.vertices.Get(rid)
}

func (g *Graph) EdgeCell(rid RecordId) *version.Cell[*Edge] {
	return g.edges.Get(rid)
}

// ForcePurgeVertices and ForcePurgeEdges physically erase rids from the
// concurrent maps. Called by the reclamation path once no active reader
// can still observe them, and by rollback to remove entities the
// rolled-back transaction itself created.
func (g *Graph) ForcePurgeVertices(rids []RecordId) {
	g.vertices.ForcePurgeBatch(rids)
}

func (g *Graph) ForcePurgeEdges(rids []RecordId) {
	g.edges.ForcePurgeBatch(rids)
}

// DeletedVertices and DeletedEdges expose the delete queues so the
// commit path can enqueue a just-deleted rid and the reclamation path
// can drain them.
func (g *Graph) DeletedVertices() *delqueue.Queue[RecordId] { return g.deletedVertices }
func (g *Graph) DeletedEdges() *delqueue.Queue[RecordId]    { return g.deletedEdges }

// PruneBelow erases stable history older than base from the vertex and
// edge cells held in the shard maps. It does not prune a vertex's
// adjacency maps or an edge's source/target cells; those are pruned only
// by the commit path, for the edges that commit touches.
func (g *Graph) PruneBelow(base version.VersionId) {
	g.vertices.PruneBelow(base)
	g.edges.PruneBelow(base)
}

// Clear removes every vertex and edge. Context.Close does not call it.
func (g *Graph) Clear() {
	g.vertices.Clear()
	g.edges.Clear()
}
