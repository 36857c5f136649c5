package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func TestEmptyListSnapshotFitsSizeBound(t *testing.T) {
	cID := cid.Root("doc", cid.TypeList)
	c := container.NewList(cID)

	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), 39)
}

func TestTextSnapshotRoundTrip(t *testing.T) {
	cID := cid.Root("doc", cid.TypeText)
	c := container.NewText(cID)
	peer := id.PeerID(1)
	c.Text().ApplyInsert(id.ID{Peer: peer, Counter: 0}, 1, id.ID{}, id.ID{}, 'h')
	c.Text().ApplyInsert(id.ID{Peer: peer, Counter: 1}, 2, id.ID{Peer: peer, Counter: 0}, id.ID{}, 'i')

	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)

	decoded, err := DecodeContainerSnapshot(cID, data)
	require.NoError(t, err)
	assert.Equal(t, c.ToValue(), decoded.ToValue())
}

func TestListSnapshotRoundTripWithNestedContainerRef(t *testing.T) {
	cID := cid.Root("doc", cid.TypeList)
	c := container.NewList(cID)
	peer := id.PeerID(1)
	childID := cid.Normal(id.ID{Peer: peer, Counter: 0}, cid.TypeMap)
	c.List().ApplyInsert(id.ID{Peer: peer, Counter: 0}, 1, id.ID{}, id.ID{}, value.ContainerRef(childID))
	c.List().ApplyInsert(id.ID{Peer: peer, Counter: 1}, 2, id.ID{Peer: peer, Counter: 0}, id.ID{}, value.I64(42))

	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)

	decoded, err := DecodeContainerSnapshot(cID, data)
	require.NoError(t, err)
	assert.Equal(t, c.ToValue(), decoded.ToValue())
}

func TestMapSnapshotRoundTrip(t *testing.T) {
	cID := cid.Root("doc", cid.TypeMap)
	c := container.NewMap(cID)
	peer := id.PeerID(3)
	c.Map().Set("a", value.I64(1), id.IDFull{ID: id.ID{Peer: peer, Counter: 0}, Lamport: 1})
	c.Map().Set("b", value.String("x"), id.IDFull{ID: id.ID{Peer: peer, Counter: 1}, Lamport: 2})

	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)

	decoded, err := DecodeContainerSnapshot(cID, data)
	require.NoError(t, err)
	assert.Equal(t, c.ToValue(), decoded.ToValue())
}

func TestMovableListSnapshotRoundTrip(t *testing.T) {
	cID := cid.Root("doc", cid.TypeMovableList)
	c := container.NewMovableList(cID)
	peer := id.PeerID(5)
	c.MovableList().Insert(0, value.String("one"), id.IDFull{ID: id.ID{Peer: peer, Counter: 0}, Lamport: 1})
	c.MovableList().Insert(1, value.String("two"), id.IDFull{ID: id.ID{Peer: peer, Counter: 1}, Lamport: 2})

	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)

	decoded, err := DecodeContainerSnapshot(cID, data)
	require.NoError(t, err)
	assert.Equal(t, c.ToValue(), decoded.ToValue())
}

func TestDecodeContainerSnapshotRejectsMismatchedKind(t *testing.T) {
	cID := cid.Root("doc", cid.TypeList)
	c := container.NewList(cID)
	data, err := EncodeContainerSnapshot(c)
	require.NoError(t, err)

	_, err = DecodeContainerSnapshot(cid.Root("doc", cid.TypeMap), data)
	require.Error(t, err)
}
