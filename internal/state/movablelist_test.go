package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/value"
)

func TestMovableListInsertSetMove(t *testing.T) {
	s := NewMovableListState()
	a := full(1, 0, 0)
	b := full(1, 1, 1)
	c := full(1, 2, 2)
	s.Insert(0, value.String("a"), a)
	s.Insert(1, value.String("b"), b)
	s.Insert(2, value.String("c"), c)

	diff := s.Move(a.ID, 2, full(2, 0, 10))
	require.Len(t, diff, 1)
	assert.Equal(t, EditMove, diff[0].Kind)

	got := s.ToValue().AsList()
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].AsString())
	assert.Equal(t, "c", got[1].AsString())
	assert.Equal(t, "a", got[2].AsString())
}

func TestMovableListConcurrentMoveHigherLamportWins(t *testing.T) {
	s := NewMovableListState()
	a := full(1, 0, 0)
	s.Insert(0, value.String("a"), a)
	s.Insert(1, value.String("b"), full(1, 1, 1))

	s.Move(a.ID, 1, full(2, 0, 5))
	lost := s.Move(a.ID, 0, full(3, 0, 4)) // lower lamport, should lose
	assert.Empty(t, lost)

	got := s.ToValue().AsList()
	assert.Equal(t, "b", got[0].AsString())
	assert.Equal(t, "a", got[1].AsString())
}

func TestMovableListSetAndMoveResolveIndependently(t *testing.T) {
	s := NewMovableListState()
	a := full(1, 0, 0)
	s.Insert(0, value.String("a"), a)

	s.Move(a.ID, 0, full(2, 0, 5))
	diff := s.Set(a.ID, value.String("a2"), full(3, 0, 1)) // lower lamport than move, but Set has no prior competing Set
	require.Len(t, diff, 1)
	got := s.ToValue().AsList()
	assert.Equal(t, "a2", got[0].AsString())
}

func TestMovableListDeleteTombstones(t *testing.T) {
	s := NewMovableListState()
	a := full(1, 0, 0)
	s.Insert(0, value.String("a"), a)
	s.Insert(1, value.String("b"), full(1, 1, 1))
	diff := s.Delete(a.ID)
	require.Len(t, diff, 1)
	got := s.ToValue().AsList()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].AsString())
}
