package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func full(peer id.PeerID, counter int32, lamport id.Lamport) id.IDFull {
	return id.IDFull{ID: id.ID{Peer: peer, Counter: counter}, Lamport: lamport}
}

func TestMapConcurrentSetHigherLamportWins(t *testing.T) {
	m := NewMapState()
	diff := m.Set("name", value.String("alice"), full(1, 0, 3))
	require.Len(t, diff, 1)

	// Concurrent set at a lower lamport must not overwrite.
	lost := m.Set("name", value.String("bob"), full(2, 0, 2))
	assert.Empty(t, lost)
	v, ok := m.Get("name")
	require.True(t, ok)
	assert.Equal(t, "alice", v.AsString())

	// Higher lamport wins.
	won := m.Set("name", value.String("carol"), full(2, 1, 5))
	assert.NotEmpty(t, won)
	v, ok = m.Get("name")
	require.True(t, ok)
	assert.Equal(t, "carol", v.AsString())
}

func TestMapTieBrokenByHigherPeer(t *testing.T) {
	m := NewMapState()
	m.Set("k", value.I64(1), full(2, 0, 5))
	lost := m.Set("k", value.I64(2), full(1, 0, 5)) // same lamport, lower peer
	assert.Empty(t, lost)
	won := m.Set("k", value.I64(3), full(9, 0, 5)) // same lamport, higher peer
	assert.NotEmpty(t, won)
	v, _ := m.Get("k")
	assert.Equal(t, int64(3), v.AsI64())
}

func TestMapDeleteRemovesKey(t *testing.T) {
	m := NewMapState()
	m.Set("k", value.Bool(true), full(1, 0, 1))
	m.Delete("k", full(1, 1, 2))
	_, ok := m.Get("k")
	assert.False(t, ok)
	assert.NotContains(t, m.Keys(), "k")
}
