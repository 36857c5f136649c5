package doc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func TestTxnTextInsertAndDelete(t *testing.T) {
	d := New(Options{Peer: 1})

	err := d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "hello")
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", d.TextValue("body"))

	err = d.Txn(func(txn *Txn) error {
		return txn.Text("body").Delete(0, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, "ello", d.TextValue("body"))
}

func TestTxnSeesItsOwnEditsWithinScope(t *testing.T) {
	d := New(Options{Peer: 1})

	err := d.Txn(func(txn *Txn) error {
		h := txn.Text("body")
		if err := h.Insert(0, "ac"); err != nil {
			return err
		}
		// A later call in the same scope must observe the earlier one.
		return h.Insert(1, "b")
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", d.TextValue("body"))
}

func TestTxnRollbackOnError(t *testing.T) {
	d := New(Options{Peer: 1})
	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "seed")
	}))

	wantErr := errors.New("boom")
	err := d.Txn(func(txn *Txn) error {
		require.NoError(t, txn.Text("body").Insert(4, "-more"))
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, "seed", d.TextValue("body"), "failed txn must not leave partial edits visible")
}

func TestTxnRollbackOnPanic(t *testing.T) {
	d := New(Options{Peer: 1})
	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "seed")
	}))

	assert.Panics(t, func() {
		_ = d.Txn(func(txn *Txn) error {
			require.NoError(t, txn.Text("body").Insert(4, "-more"))
			panic("boom")
		})
	})
	assert.Equal(t, "seed", d.TextValue("body"), "a panicking txn must not leave partial edits visible")
}

func TestSubscribeFiresOnLocalCommitAndUnsubscribeStops(t *testing.T) {
	d := New(Options{Peer: 1})
	root := d.ensureRoot("body", cid.TypeText)

	var events []Event
	unsub := d.Subscribe(root.ID, func(e Event) { events = append(events, e) })

	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "x")
	}))
	require.Len(t, events, 1)
	assert.Equal(t, OriginLocal, events[0].Origin)

	unsub()
	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(1, "y")
	}))
	assert.Len(t, events, 1, "unsubscribed callback must not fire again")
}

func TestMapSetAndDeleteAreDistinctOnReplay(t *testing.T) {
	src := New(Options{Peer: 1})
	require.NoError(t, src.Txn(func(txn *Txn) error {
		txn.Map("m").Set("k", value.String("v"))
		return nil
	}))

	dst := New(Options{Peer: 2})
	require.NoError(t, dst.Import(src.Snapshot()))

	root := dst.ensureRoot("m", cid.TypeMap)
	v, ok := root.Map().Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v.AsString())

	require.NoError(t, src.Txn(func(txn *Txn) error {
		txn.Map("m").Delete("k")
		return nil
	}))
	require.NoError(t, dst.Import(src.Export(dst.VV())))

	_, ok = dst.ensureRoot("m", cid.TypeMap).Map().Get("k")
	assert.False(t, ok, "a MapDel op must tombstone the key, not merely null it")
}

func TestExportImportRoundTripMergesConcurrentEdits(t *testing.T) {
	a := New(Options{Peer: 1})
	require.NoError(t, a.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "abc")
	}))

	b := New(Options{Peer: 2})
	require.NoError(t, b.Import(a.Snapshot()))
	assert.Equal(t, "abc", b.TextValue("body"))

	// Concurrent edits on both sides.
	require.NoError(t, a.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(3, "A")
	}))
	require.NoError(t, b.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "B")
	}))

	require.NoError(t, b.Import(a.Export(b.VV())))
	require.NoError(t, a.Import(b.Export(a.VV())))

	assert.Equal(t, a.TextValue("body"), b.TextValue("body"), "both replicas must converge to the same text")
}

func TestIncrementalExportOnlySendsUnseenTail(t *testing.T) {
	a := New(Options{Peer: 1})
	require.NoError(t, a.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "ab")
	}))

	b := New(Options{Peer: 2})
	require.NoError(t, b.Import(a.Export(b.VV())))
	assert.Equal(t, "ab", b.TextValue("body"))

	require.NoError(t, a.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(2, "cd")
	}))
	// Exporting against b's current VV should only carry the new "cd" run.
	require.NoError(t, b.Import(a.Export(b.VV())))
	assert.Equal(t, "abcd", b.TextValue("body"))
}

func TestCheckoutRetreatsAndForwardsText(t *testing.T) {
	d := New(Options{Peer: 1})
	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "a")
	}))
	mid := d.Frontier()

	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(1, "b")
	}))
	tip := d.Frontier()
	assert.Equal(t, "ab", d.TextValue("body"))

	require.NoError(t, d.Checkout(mid))
	assert.Equal(t, "a", d.TextValue("body"), "checkout to an earlier frontier must retreat later inserts")

	require.NoError(t, d.Checkout(tip))
	assert.Equal(t, "ab", d.TextValue("body"), "checking back out to tip must forward them again")
}

func TestCheckoutToUnknownFrontierReturnsVersionError(t *testing.T) {
	d := New(Options{Peer: 1})
	require.NoError(t, d.Txn(func(txn *Txn) error {
		return txn.Text("body").Insert(0, "a")
	}))

	bogus := id.Frontier{{Peer: 99, Counter: 0}}
	err := d.Checkout(bogus)
	require.Error(t, err)
	assert.True(t, crdterr.Is(err, crdterr.Version))
}
