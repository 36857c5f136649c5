package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
	"github.com/Polqt/crdtcollab/internal/oplog"
)

func TestOpLogSnapshotRoundTrip(t *testing.T) {
	l := oplog.New(nil, 0)
	l.AppendLocal(1, []oplog.Op{{ContainerIdx: 0, Content: opcontent.TextIns{Pos: 0, Text: []rune("hi")}}})
	l.AppendLocal(2, []oplog.Op{{ContainerIdx: 0, Content: opcontent.TextIns{Pos: 2, Text: []rune("!")}}})

	data := EncodeOpLog(l)
	require.NotEmpty(t, data)

	restored := oplog.New(nil, 0)
	require.NoError(t, DecodeOpLog(data, restored))

	assert.True(t, restored.VV().Equal(l.VV()))
	assert.ElementsMatch(t, l.Peers(), restored.Peers())
	for _, p := range l.Peers() {
		orig := l.Changes(p)
		got := restored.Changes(p)
		require.Len(t, got, len(orig))
		for i := range orig {
			assert.Equal(t, orig[i].Counter, got[i].Counter)
			assert.Equal(t, orig[i].Lamport, got[i].Lamport)
		}
	}
}

func TestOpRoundTripPreservesOriginAndPos(t *testing.T) {
	op := oplog.Op{ContainerIdx: 3, Content: opcontent.TextIns{
		Pos:         5,
		Text:        []rune("ab"),
		OriginLeft:  id.ID{Peer: 7, Counter: 1},
		OriginRight: id.ID{Peer: 8, Counter: 2},
	}}
	var buf bytes.Buffer
	EncodeOp(&buf, op)
	got, err := DecodeOp(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	ti, ok := got.Content.(opcontent.TextIns)
	require.True(t, ok)
	assert.Equal(t, op.Content.(opcontent.TextIns).Pos, ti.Pos)
	assert.Equal(t, op.Content.(opcontent.TextIns).OriginLeft, ti.OriginLeft)
	assert.Equal(t, "ab", string(ti.Text))
	assert.Equal(t, int32(3), got.ContainerIdx)
}
