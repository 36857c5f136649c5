package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func roundTripValue(t *testing.T, v value.Value) value.Value {
	t.Helper()
	var buf bytes.Buffer
	EncodeValue(&buf, v)
	got, err := DecodeValue(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return got
}

func TestValueBinaryRoundTrip(t *testing.T) {
	ref := cid.Normal(id.ID{Peer: 1, Counter: 2}, cid.TypeMap)
	cases := []value.Value{
		value.Null(),
		value.Bool(true),
		value.I64(-42),
		value.F64(3.5),
		value.Binary([]byte{1, 2, 3}),
		value.String("hello"),
		value.List([]value.Value{value.I64(1), value.String("x")}),
		value.Map(map[string]value.Value{"a": value.I64(1), "b": value.Bool(false)}),
		value.ContainerRef(ref),
	}
	for _, v := range cases {
		got := roundTripValue(t, v)
		assert.True(t, v.Equal(got), "round trip changed value: %v", v)
	}
}

func TestHumanEncodingDisambiguatesContainerRefFromString(t *testing.T) {
	ref := cid.Root("todos", cid.TypeList)
	h := EncodeHuman(value.ContainerRef(ref))
	s, ok := h.(string)
	require.True(t, ok)
	assert.Contains(t, s, "🦜:")

	back, err := DecodeHuman(s)
	require.NoError(t, err)
	assert.Equal(t, value.KindContainerRef, back.Kind())
	assert.Equal(t, ref, back.AsContainerRef())
}

func TestHumanEncodingEscapesStringStartingWithSentinel(t *testing.T) {
	v := value.String("🦜:not-actually-a-ref")
	h := EncodeHuman(v)
	back, err := DecodeHuman(h)
	require.NoError(t, err)
	assert.Equal(t, value.KindString, back.Kind())
	assert.Equal(t, "🦜:not-actually-a-ref", back.AsString())
}
