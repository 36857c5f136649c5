package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container/cid"
)

func TestRegistryAscendIsDeterministic(t *testing.T) {
	r := NewRegistry()
	ids := []cid.ContainerID{
		cid.Root("zeta", cid.TypeText),
		cid.Root("alpha", cid.TypeMap),
		cid.Root("mid", cid.TypeList),
	}
	for _, id := range ids {
		r.Put(NewText(id))
	}
	require.Equal(t, 3, r.Len())

	var order []string
	r.Ascend(func(c *Container) bool {
		order = append(order, c.ID.String())
		return true
	})
	assert.True(t, order[0] < order[1] && order[1] < order[2], "ascend must yield keys in sorted order")

	// Running it again must produce the identical order.
	var again []string
	r.Ascend(func(c *Container) bool {
		again = append(again, c.ID.String())
		return true
	})
	assert.Equal(t, order, again)
}

func TestRegistryGetAndDelete(t *testing.T) {
	r := NewRegistry()
	id := cid.Root("doc", cid.TypeMap)
	r.Put(NewMap(id))

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, cid.TypeMap, got.Kind)

	r.Delete(id)
	_, ok = r.Get(id)
	assert.False(t, ok)
}
