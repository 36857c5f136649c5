package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func TestListInsertAndDelete(t *testing.T) {
	s := NewListState()
	origin := id.ID{}
	for i, v := range []string{"a", "b", "c"} {
		aid := id.ID{Peer: 1, Counter: int32(i)}
		s.ApplyInsert(aid, id.Lamport(i), origin, id.ID{}, value.String(v))
		origin = aid
	}
	require.Equal(t, int32(3), s.Len())

	diff := s.ApplyDelete(id.ID{Peer: 2, Counter: 0}, id.ID{Peer: 1, Counter: 1})
	require.Len(t, diff, 1)
	assert.Equal(t, int32(1), diff[0].Pos)
	assert.Equal(t, int32(2), s.Len())

	got := s.ToValue().AsList()
	assert.Equal(t, "a", got[0].AsString())
	assert.Equal(t, "c", got[1].AsString())
}

func TestListTracksChildContainerSlot(t *testing.T) {
	s := NewListState()
	child := cid.Normal(id.ID{Peer: 1, Counter: 0}, cid.TypeMap)
	s.ApplyInsert(id.ID{Peer: 1, Counter: 0}, 0, id.ID{}, id.ID{}, value.ContainerRef(child))
	s.ApplyInsert(id.ID{Peer: 1, Counter: 1}, 1, id.ID{Peer: 1, Counter: 0}, id.ID{}, value.String("x"))

	pos, ok := s.ChildSlot(child)
	require.True(t, ok)
	assert.Equal(t, int32(0), pos)

	// Inserting before the child shifts its slot.
	s.ApplyInsert(id.ID{Peer: 2, Counter: 0}, 2, id.ID{}, id.ID{Peer: 1, Counter: 0}, value.String("head"))
	pos, ok = s.ChildSlot(child)
	require.True(t, ok)
	assert.Equal(t, int32(1), pos)
}
