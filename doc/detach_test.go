package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
)

func TestDeletingMapSlotDetachesNestedContainer(t *testing.T) {
	d := New(Options{Peer: 1})
	var child cid.ContainerID
	require.NoError(t, d.Txn(func(txn *Txn) error {
		child = txn.Map("m").SetContainer("child", cid.TypeText)
		h, err := txn.OpenText(child)
		require.NoError(t, err)
		return h.Insert(0, "hi")
	}))

	require.NoError(t, d.Txn(func(txn *Txn) error {
		txn.Map("m").Delete("child")
		return nil
	}))

	err := d.Txn(func(txn *Txn) error {
		_, err := txn.OpenText(child)
		return err
	})
	require.Error(t, err)
	assert.True(t, crdterr.Is(err, crdterr.Usage), "opening a torn-down container must be a UsageError")
}

func TestOverwritingMapSlotDetachesThePreviousChild(t *testing.T) {
	d := New(Options{Peer: 1})
	var first cid.ContainerID
	require.NoError(t, d.Txn(func(txn *Txn) error {
		first = txn.Map("m").SetContainer("slot", cid.TypeMap)
		return nil
	}))

	require.NoError(t, d.Txn(func(txn *Txn) error {
		txn.Map("m").SetContainer("slot", cid.TypeList)
		return nil
	}))

	err := d.Txn(func(txn *Txn) error {
		_, err := txn.OpenMap(first)
		return err
	})
	require.Error(t, err)
	assert.True(t, crdterr.Is(err, crdterr.Usage))
}

func TestRecursiveTeardownDetachesGrandchildren(t *testing.T) {
	d := New(Options{Peer: 1})
	var grandchild cid.ContainerID
	require.NoError(t, d.Txn(func(txn *Txn) error {
		childID := txn.Map("m").SetContainer("child", cid.TypeMap)
		child, err := txn.OpenMap(childID)
		require.NoError(t, err)
		grandchild = child.SetContainer("gc", cid.TypeText)
		return nil
	}))

	require.NoError(t, d.Txn(func(txn *Txn) error {
		txn.Map("m").Delete("child")
		return nil
	}))

	err := d.Txn(func(txn *Txn) error {
		_, err := txn.OpenText(grandchild)
		return err
	})
	require.Error(t, err, "tearing down a parent must recursively detach its own children too")
	assert.True(t, crdterr.Is(err, crdterr.Usage))
}

func TestDeletingListSlotDetachesNestedContainerButCheckoutRetreatDoesNot(t *testing.T) {
	d := New(Options{Peer: 1})
	var child cid.ContainerID
	require.NoError(t, d.Txn(func(txn *Txn) error {
		var err error
		child, err = txn.List("l").InsertContainer(0, cid.TypeText)
		return err
	}))
	mid := d.Frontier()

	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.List("l").Delete(0, 1)
	}))

	err := d.Txn(func(txn *Txn) error {
		_, err := txn.OpenText(child)
		return err
	})
	require.Error(t, err, "a real list delete must detach the child it held")
	assert.True(t, crdterr.Is(err, crdterr.Usage))

	// Checking back out to before the delete must not resurrect the
	// detached child as a live handle target.
	require.NoError(t, d.Checkout(mid))
	err = d.Txn(func(txn *Txn) error {
		_, err := txn.OpenText(child)
		return err
	})
	require.Error(t, err, "retreating a delete is a view change, not an undelete of the torn-down container")
}
