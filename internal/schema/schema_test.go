package schema

import (
	"testing"

	"github.com/nogdb/nogdb-core/internal/txnobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writer() Visibility { return Visibility{ReadOnly: false} }

func TestCreateClassRejectsDuplicate(t *testing.T) {
	s := New()
	_, ok := s.CreateClass(writer(), 1, "Person")
	require.True(t, ok)

	_, ok = s.CreateClass(writer(), 1, "AlsoPerson")
	assert.False(t, ok)
}

func TestLookupByNameFindsVisibleClass(t *testing.T) {
	s := New()
	s.CreateClass(writer(), 1, "Person")

	found := s.LookupByName(writer(), "Person")
	require.NotNil(t, found)
	assert.Equal(t, uint32(1), found.ClassId)

	assert.Nil(t, s.LookupByName(writer(), "NoSuchClass"))
}

func TestLookupByNameHidesUncommittedFromReadOnly(t *testing.T) {
	s := New()
	s.CreateClass(writer(), 1, "Person")

	snapshot := Visibility{ReadOnly: true, Snapshot: 0}
	assert.Nil(t, s.LookupByName(snapshot, "Person"))
}

func TestDropClassOnUncommittedCreateForcePurges(t *testing.T) {
	s := New()
	s.CreateClass(writer(), 1, "Person")

	s.DropClass(writer(), 1)

	assert.Nil(t, s.classes.Get(1))
}

func TestDropClassOnCommittedFlagsUncommittedDelete(t *testing.T) {
	s := New()
	s.CreateClass(writer(), 1, "Person")
	cell := s.classes.Get(1)
	d, _ := cell.ReadLatest()
	d.State.PromoteState(1)
	cell.Promote(1)

	s.DropClass(writer(), 1)

	_, status := d.State.GetState()
	assert.Equal(t, txnobject.UncommittedDelete, status)
}

func TestPropertiesStageIndependentlyOfName(t *testing.T) {
	s := New()
	d, _ := s.CreateClass(writer(), 1, "Person")

	props, _ := d.Properties.ReadLatest()
	props[1] = PropertyDescriptor{Name: "age", Signed: true}
	d.Properties.Stage(props)

	name, ok := d.Name.ReadLatest()
	require.True(t, ok)
	assert.Equal(t, "Person", name, "staging a new Properties version must not disturb Name")

	gotProps, ok := d.Properties.ReadLatest()
	require.True(t, ok)
	assert.Contains(t, gotProps, uint32(1))
}

func TestClassCellVisibilityBoundary(t *testing.T) {
	s := New()
	s.CreateClass(writer(), 1, "Person")
	cell := s.classes.Get(1)
	d, _ := cell.ReadLatest()
	d.State.PromoteState(5)
	cell.Promote(5)

	before := Visibility{ReadOnly: true, Snapshot: 4}
	assert.Nil(t, s.Lookup(before, 1))

	after := Visibility{ReadOnly: true, Snapshot: 5}
	assert.NotNil(t, s.Lookup(after, 1))
}
