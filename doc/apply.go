package doc

import (
	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
	"github.com/Polqt/crdtcollab/internal/oplog"
	"github.com/Polqt/crdtcollab/internal/state"
)

// materializeRange replays every op integrated between from and to — the
// frontier just before and just after an IntegrateRemote call, which may
// have transitively drained several previously-deferred changes — into
// container state, in the same (Lamport, Peer) order the OpLog already
// guarantees is causally consistent. It groups the resulting diffs per
// container and fires one Event each. Callers must hold d.mu.
func (d *Document) materializeRange(from, to id.Frontier) {
	ops := d.ops.IterCausal(from, to)
	if len(ops) == 0 {
		return
	}
	type acc struct {
		diff state.Diff
		oldV id.VV
	}
	touched := make(map[cid.ContainerID]*acc)
	var order []cid.ContainerID

	for _, co := range ops {
		cID := d.containerAt(co.Op.ContainerIdx)
		c := d.ensureChild(cID)
		a, ok := touched[cID]
		if !ok {
			a = &acc{oldV: d.ops.VVOfFrontier(from)}
			touched[cID] = a
			order = append(order, cID)
		}
		a.diff = a.diff.Compose(applyRemoteOp(c, co))
	}

	d.view = to.Clone()
	newV := d.ops.VVOfFrontier(d.view)
	for _, cID := range order {
		a := touched[cID]
		if len(a.diff) == 0 {
			continue
		}
		d.detachOrphans(a.diff)
		d.notify(Event{ContainerID: cID, OldVersion: a.oldV, NewVersion: newV, Diff: a.diff, Origin: OriginRemote})
	}
}

// applyRemoteOp replays one already-integrated op into c's state. co.ID and
// co.Lamport are the op's first atom; multi-atom runs (TextIns, SeqDel)
// derive the rest positionally, mirroring how Change.LamportAt/AtomLen
// define them.
func applyRemoteOp(c *container.Container, co oplog.CausalOp) state.Diff {
	switch content := co.Op.Content.(type) {
	case opcontent.TextIns:
		var out state.Diff
		origin := content.OriginLeft
		for i, r := range content.Text {
			atomID := id.ID{Peer: co.ID.Peer, Counter: co.ID.Counter + int32(i)}
			lamport := co.Lamport + id.Lamport(i)
			out = out.Compose(c.Text().ApplyInsert(atomID, lamport, origin, content.OriginRight, r))
			origin = atomID
		}
		return out
	case opcontent.SeqDel:
		var out state.Diff
		if c.Kind == cid.TypeMovableList {
			for _, target := range content.Targets() {
				out = out.Compose(c.MovableList().Delete(target))
			}
			return out
		}
		for i, target := range content.Targets() {
			delOpID := id.ID{Peer: co.ID.Peer, Counter: co.ID.Counter + int32(i)}
			if content.Kind() == opcontent.KindListDel {
				out = out.Compose(c.List().ApplyDelete(delOpID, target))
			} else {
				out = out.Compose(c.Text().ApplyDelete(delOpID, target))
			}
		}
		return out
	case opcontent.ListIns:
		var out state.Diff
		if c.Kind == cid.TypeMovableList {
			for i, v := range content.Items {
				elemID := id.IDFull{
					ID:      id.ID{Peer: co.ID.Peer, Counter: co.ID.Counter + int32(i)},
					Lamport: co.Lamport + id.Lamport(i),
				}
				out = out.Compose(c.MovableList().Insert(content.Pos+int32(i), v, elemID))
			}
			return out
		}
		origin := content.OriginLeft
		for i, v := range content.Items {
			atomID := id.ID{Peer: co.ID.Peer, Counter: co.ID.Counter + int32(i)}
			lamport := co.Lamport + id.Lamport(i)
			out = out.Compose(c.List().ApplyInsert(atomID, lamport, origin, content.OriginRight, v))
			origin = atomID
		}
		return out
	case opcontent.Move:
		author := id.IDFull{ID: co.ID, Lamport: co.Lamport}
		return c.MovableList().Move(content.Elem.ID, content.ToPos, author)
	case opcontent.Set:
		author := id.IDFull{ID: co.ID, Lamport: co.Lamport}
		if c.Kind == cid.TypeMovableList {
			return c.MovableList().Set(content.Elem.ID, content.Value, author)
		}
		return c.Map().Set(content.Key, content.Value, author)
	case opcontent.MapDel:
		author := id.IDFull{ID: co.ID, Lamport: co.Lamport}
		return c.Map().Delete(content.Key, author)
	case opcontent.StyleStart:
		author := id.IDFull{ID: co.ID, Lamport: co.Lamport}
		c.Text().OpenStyle(content.Pos, content.Key, content.Value, author)
		return nil
	case opcontent.StyleEnd:
		return c.Text().CloseStyle(content.Pos, content.Key)
	default:
		return nil
	}
}
