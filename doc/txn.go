package doc

import (
	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
	"github.com/Polqt/crdtcollab/internal/oplog"
	"github.com/Polqt/crdtcollab/internal/state"
)

// Txn batches local edits within one scope (§4.4): every handle call
// mutates container state in place immediately, so a later call in the same
// scope observes the effect of an earlier one, while the ops that will
// become one atomic OpLog change, and the diffs that will become each
// touched container's event, accumulate until the scope completes.
//
// Rollback is copy-on-write at the container level rather than inverse-diff
// replay: touch() clones a container aside the first time a scope mutates
// it, and an aborted scope reinstalls that clone wholesale instead of
// computing and replaying the inverse of every edit made so far.
type Txn struct {
	doc *Document

	ops   []oplog.Op
	diffs map[cid.ContainerID]state.Diff
	oldVV map[cid.ContainerID]id.VV
	saved map[cid.ContainerID]*container.Container
	order []cid.ContainerID

	metaInit     bool
	counterStart int32
	counterNext  int32
	lamportBase  id.Lamport
}

// Txn runs fn inside a transaction: on success, its accumulated ops are
// appended to the OpLog as one atomic change per §4.4 and one event per
// touched container is dispatched. On error, or if fn panics, every
// touched container is reinstalled from its pre-txn snapshot and nothing
// reaches the OpLog; a panic is recovered, the rollback still runs, and the
// panic is then re-raised.
func (d *Document) Txn(fn func(*Txn) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txn := &Txn{
		doc:   d,
		diffs: make(map[cid.ContainerID]state.Diff),
		oldVV: make(map[cid.ContainerID]id.VV),
		saved: make(map[cid.ContainerID]*container.Container),
	}

	defer func() {
		if r := recover(); r != nil {
			txn.rollback()
			panic(r)
		}
	}()

	if ferr := fn(txn); ferr != nil {
		txn.rollback()
		return ferr
	}

	txn.commit()
	return nil
}

// touch registers c as mutated within this scope, cloning its pre-txn state
// aside the first time. Every handle method routes its container through
// this before applying a local edit.
func (txn *Txn) touch(c *container.Container) *container.Container {
	if _, ok := txn.saved[c.ID]; ok {
		return c
	}
	txn.saved[c.ID] = c.Clone()
	txn.oldVV[c.ID] = txn.doc.ops.VV().Clone()
	txn.order = append(txn.order, c.ID)
	return c
}

func (txn *Txn) rollback() {
	for _, saved := range txn.saved {
		txn.doc.registry.Put(saved)
	}
}

// nextAtom reserves the next n atoms of this txn's local op stream,
// returning the id and Lamport of the first. Every handle call that creates
// new atoms (inserts, style bookends, moves, sets) goes through this so the
// whole scope's worth of edits lands in one Lamport-contiguous run, matching
// what OpLog.AppendLocal will assign when the change is actually appended.
func (txn *Txn) nextAtom(n int32) (id.ID, id.Lamport) {
	d := txn.doc
	if !txn.metaInit {
		txn.counterStart = d.ops.NextCounter(d.peer)
		txn.counterNext = txn.counterStart
		txn.lamportBase = d.ops.NextLamport()
		txn.metaInit = true
	}
	first := id.ID{Peer: d.peer, Counter: txn.counterNext}
	lamport := txn.lamportBase + id.Lamport(txn.counterNext-txn.counterStart)
	txn.counterNext += n
	return first, lamport
}

func (txn *Txn) appendOp(counter int32, containerIdx int32, content opcontent.Content) {
	txn.ops = append(txn.ops, oplog.Op{Counter: counter, ContainerIdx: containerIdx, Content: content})
}

func (txn *Txn) appendDiff(cID cid.ContainerID, d state.Diff) {
	if len(d) == 0 {
		return
	}
	txn.diffs[cID] = txn.diffs[cID].Compose(d)
}

func (txn *Txn) containerIdx(cID cid.ContainerID) int32 {
	return txn.doc.indexOf(cID)
}

func (txn *Txn) commit() {
	d := txn.doc
	if len(txn.ops) > 0 {
		d.ops.AppendLocal(d.peer, txn.ops)
	}
	d.view = d.ops.Frontier()
	newVV := d.ops.VV().Clone()
	for _, cID := range txn.order {
		diff := txn.diffs[cID]
		if len(diff) == 0 {
			continue
		}
		d.detachOrphans(diff)
		d.notify(Event{ContainerID: cID, OldVersion: txn.oldVV[cID], NewVersion: newVV, Diff: diff, Origin: OriginLocal})
	}
}
