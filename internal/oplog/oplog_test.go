package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
)

func textIns(pos int32, s string) Op {
	return Op{ContainerIdx: 0, Content: opcontent.TextIns{Pos: pos, Text: []rune(s)}}
}

func TestAppendLocalAssignsCounterAndLamport(t *testing.T) {
	l := New(nil, 0)
	f1 := l.AppendLocal(1, []Op{textIns(0, "ab")})
	require.Len(t, f1, 1)
	assert.Equal(t, id.ID{Peer: 1, Counter: 1}, f1[0])
	assert.Equal(t, id.Lamport(0), l.GetLamport(id.ID{Peer: 1, Counter: 0}))

	f2 := l.AppendLocal(1, []Op{textIns(2, "c")})
	assert.Equal(t, id.ID{Peer: 1, Counter: 2}, f2[0])
	assert.Equal(t, id.Lamport(2), l.GetLamport(id.ID{Peer: 1, Counter: 2}))
}

func TestAppendLocalMergesAdjacentRuns(t *testing.T) {
	l := New(nil, 0)
	l.AppendLocal(1, []Op{textIns(0, "ab")})
	l.AppendLocal(1, []Op{textIns(2, "cd")})
	changes := l.Changes(1)
	require.Len(t, changes, 1, "adjacent same-peer inserts should merge into one change")
	assert.Equal(t, "abcd", string(changes[0].Ops[0].Content.(opcontent.TextIns).Text))
}

func TestIntegrateRemoteRequiresDeps(t *testing.T) {
	l := New(nil, 0)
	ch := &Change{Peer: 2, Counter: 0, Lamport: 0, Ops: []Op{textIns(0, "x")}, Deps: id.Frontier{{Peer: 1, Counter: 0}}}
	ok, err := l.IntegrateRemote(ch, false)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestIntegrateRemoteDefersThenDrains(t *testing.T) {
	l := New(nil, 0)
	l.AppendLocal(1, []Op{textIns(0, "a")})

	child := &Change{Peer: 2, Counter: 0, Lamport: 1, Ops: []Op{textIns(0, "y")}, Deps: id.Frontier{{Peer: 1, Counter: 5}}}
	ok, err := l.IntegrateRemote(child, true)
	require.NoError(t, err)
	assert.False(t, ok, "should defer on missing dep")

	// now satisfy the dep with a remote run covering 1@1..1@5
	parent := &Change{Peer: 1, Counter: 1, Lamport: 1, Ops: []Op{textIns(1, "zzzzz")}, Deps: id.Frontier{{Peer: 1, Counter: 0}}}
	ok, err = l.IntegrateRemote(parent, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, l.Has(id.ID{Peer: 2, Counter: 0}), "deferred change should drain once deps land")
}

func TestFindCommonAncestorConverges(t *testing.T) {
	l := New(nil, 0)
	base := l.AppendLocal(1, []Op{textIns(0, "root")})

	chA := &Change{Peer: 1, Counter: 4, Lamport: 4, Ops: []Op{textIns(4, "a")}, Deps: base}
	l.IntegrateRemote(chA, false)
	chB := &Change{Peer: 2, Counter: 0, Lamport: 4, Ops: []Op{textIns(0, "b")}, Deps: base}
	l.IntegrateRemote(chB, false)

	lca := l.FindCommonAncestor(id.Frontier{{Peer: 1, Counter: 4}}, id.Frontier{{Peer: 2, Counter: 0}})
	assert.True(t, lca.Equal(base))
}
