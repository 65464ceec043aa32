// Package schema is the class-descriptor engine: a concurrent map of
// class id to ClassDescriptor, where every mutable field of a descriptor
// is itself a versioned cell so a staged rename, property add, or
// re-parenting can be rolled back without disturbing a concurrent
// reader's already-promoted view. Lifecycle and visibility follow
// internal/txnobject exactly as internal/graph's vertices and edges do --
// a pending class-drop is just an uncommittedDelete status, nothing
// schema-specific.
package schema

import (
	"github.com/nogdb/nogdb-core/internal/delqueue"
	"github.com/nogdb/nogdb-core/internal/shardmap"
	"github.com/nogdb/nogdb-core/internal/txnobject"
	"github.com/nogdb/nogdb-core/internal/version"
)

// PropertyDescriptor describes one property of a class. Signed records
// whether the property is a signed numeric type; it is stored with the
// descriptor, and no code in the core reads it.
type PropertyDescriptor struct {
	Name   string
	Signed bool
}

// ClassDescriptor is the set of a class's staged, versioned fields. Name,
// Properties, Super, and Sub are each held in their own cell so a
// transaction can stage a change to just one of them and have the others
// resolve to their last-promoted value until commit.
type ClassDescriptor struct {
	ClassId    uint32
	State      txnobject.Object
	Name       *version.Cell[string]
	Properties *version.Cell[map[uint32]PropertyDescriptor]
	Super      *version.Cell[uint32]
	Sub        *version.Cell[[]uint32]
}

func newDescriptor(classID uint32, name string) *ClassDescriptor {
	return &ClassDescriptor{
		ClassId:    classID,
		Name:       version.NewWithValue(name),
		Properties: version.NewWithValue(map[uint32]PropertyDescriptor{}),
		Super:      version.NewWithValue[uint32](0),
		Sub:        version.NewWithValue[[]uint32](nil),
	}
}

// Visibility mirrors internal/graph.Visibility: either a fixed read-only
// snapshot, or the read-write view consulting what the active writer
// just staged.
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

// Schema owns the class-descriptor map and its delete queue.
type Schema struct {
	classes *shardmap.Map[uint32, *ClassDescriptor]
	deleted *delqueue.Queue[uint32]
}

// New returns an empty Schema.
func New() *Schema {
	return &Schema{
		classes: shardmap.New[uint32, *ClassDescriptor](),
		deleted: delqueue.New[uint32](),
	}
}

// Lookup resolves classID under vis, returning nil if it does not exist
// or is not visible.
func (s *Schema) Lookup(vis Visibility, classID uint32) *ClassDescriptor {
	cell := s.classes.Get(classID)
	if cell == nil {
		return nil
	}
	d, ok := cell.ReadLatest()
	if !ok {
		return nil
	}
	if !vis.visible(&d.State) {
		return nil
	}
	return d
}

// LookupByName scans the currently visible descriptors for a name match.
// Class lookup is infrequent compared to vertex/edge traversal, so a
// linear scan over the (typically small) class set is preferred over
// maintaining a second name-keyed index.
func (s *Schema) LookupByName(vis Visibility, name string) *ClassDescriptor {
	var found *ClassDescriptor
	for _, classID := range s.classes.Keys() {
		d := s.Lookup(vis, classID)
		if d == nil {
			continue
		}
		if n, ok := d.Name.ReadLatest(); ok && n == name {
			found = d
			break
		}
	}
	return found
}

// CreateClass stages a new descriptor at classID with status
// uncommittedCreate. Returns false without effect if a visible class
// already occupies classID.
func (s *Schema) CreateClass(vis Visibility, classID uint32, name string) (*ClassDescriptor, bool) {
	if s.Lookup(vis, classID) != nil {
		return nil, false
	}
	d := newDescriptor(classID, name)
	s.classes.Insert(classID, d)
	return d, true
}

// DropClass either drops classID from the map (it was never committed)
// or flips it to uncommittedDelete. No-op if classID is not visible.
func (s *Schema) DropClass(vis Visibility, classID uint32) {
	d := s.Lookup(vis, classID)
	if d == nil {
		return
	}
	_, status := d.State.GetState()
	if status == txnobject.UncommittedCreate {
		s.classes.ForcePurge(classID)
		return
	}
	d.State.SetStatus(txnobject.UncommittedDelete)
}

// ClassCount reports how many class descriptors are currently
// installed, including ones not yet visible to any reader. Used by the
// stat CLI command.
func (s *Schema) ClassCount() int {
	return s.classes.Len()
}

// ClassCell exposes the raw versioned cell for classID, used by the
// commit path to prune and promote state directly.
func (s *Schema) ClassCell(classID uint32) *version.Cell[*ClassDescriptor] {
	return s.classes.Get(classID)
}

// ForcePurge physically erases classIDs from the concurrent map. Called
// by the reclamation path once no active reader can still observe them,
// and by rollback for classes created in the rolled-back transaction.
func (s *Schema) ForcePurge(classIDs []uint32) {
	s.classes.ForcePurgeBatch(classIDs)
}

// DeleteQueue exposes the class-drop queue so the commit path can
// enqueue a just-dropped class id and the reclamation path can drain it.
func (s *Schema) DeleteQueue() *delqueue.Queue[uint32] { return s.deleted }

// PruneBelow erases stable history older than base from every class
// cell. It does not prune the descriptors' own Name, Properties, Super
// or Sub cells.
func (s *Schema) PruneBelow(base version.VersionId) {
	s.classes.PruneBelow(base)
}

// Clear removes every class descriptor.
func (s *Schema) Clear() {
	s.classes.Clear()
}
