package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVVMergeIsComponentwiseMax(t *testing.T) {
	a := VV{1: 3, 2: 1}
	b := VV{1: 1, 3: 5}
	merged := a.Merge(b)
	assert.Equal(t, int32(3), merged.Get(1))
	assert.Equal(t, int32(1), merged.Get(2))
	assert.Equal(t, int32(5), merged.Get(3))
	// originals untouched
	assert.Equal(t, int32(3), a.Get(1))
}

func TestVVPartialOrder(t *testing.T) {
	a := VV{1: 2}
	b := VV{1: 3}
	assert.True(t, a.HappensBefore(b))
	assert.False(t, b.HappensBefore(a))

	c := VV{1: 2, 2: 1}
	d := VV{1: 1, 2: 2}
	assert.True(t, c.Concurrent(d))
}

func TestVVDiffRoundTrips(t *testing.T) {
	from := VV{1: 5, 2: 2}
	to := VV{1: 3, 2: 4, 3: 1}
	retreat, forward := from.Diff(to)
	require.Len(t, retreat, 1)
	assert.Equal(t, IDSpan{Peer: 1, Start: 3, Len: 2}, retreat[0])
	require.Len(t, forward, 2)
	assert.Equal(t, IDSpan{Peer: 2, Start: 2, Len: 2}, forward[0])
	assert.Equal(t, IDSpan{Peer: 3, Start: 0, Len: 1}, forward[1])
}

func TestPersistentVVCloneIsCheapAndIsolated(t *testing.T) {
	base := NewPersistentVV().Set(1, 4).Set(2, 1)
	derived := base.Set(1, 9)

	assert.Equal(t, int32(4), base.Get(1), "base snapshot must not see later writes")
	assert.Equal(t, int32(9), derived.Get(1))
	assert.Equal(t, int32(1), derived.Get(2), "unrelated key shared structurally")
}

func TestFrontierEqualityIsSetEquality(t *testing.T) {
	a := Frontier{{Peer: 1, Counter: 2}, {Peer: 2, Counter: 0}}
	b := Frontier{{Peer: 2, Counter: 0}, {Peer: 1, Counter: 2}}
	assert.True(t, a.Equal(b))
}
