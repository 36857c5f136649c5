package state

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/fugue"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

// ListState is the List container: a Fugue-ordered sequence of
// value.Value elements. Per the scope note in internal/fugue, the spec's
// order-statistics tree is realized here as the tracker's per-atom order
// plus a plain value slice kept in lockstep — O(n) position updates
// instead of O(log n), same trade made by the tracker itself.
type ListState struct {
	tracker *fugue.Tracker
	buf     []value.Value

	// childIndex maps a nested container's id to its current slot, so a
	// recursive delete/checkout can find and tear down or re-hide children
	// without a linear scan.
	childIndex map[cid.ContainerID]int32
}

// NewListState returns an empty list container state.
func NewListState() *ListState {
	return &ListState{tracker: fugue.New(), childIndex: make(map[cid.ContainerID]int32)}
}

// Clone returns a deep copy, used by the document's transaction guard to
// set aside the pre-transaction state before the first mutation in a scope.
func (s *ListState) Clone() *ListState {
	childIndex := make(map[cid.ContainerID]int32, len(s.childIndex))
	for k, v := range s.childIndex {
		childIndex[k] = v
	}
	return &ListState{tracker: s.tracker.Clone(), buf: append([]value.Value(nil), s.buf...), childIndex: childIndex}
}

// OriginAt returns the origin-left id a local insert at pos should carry.
func (s *ListState) OriginAt(pos int32) id.ID { return s.tracker.OriginsAt(pos) }

// OriginRightAt returns the origin-right id a local insert at pos should
// carry.
func (s *ListState) OriginRightAt(pos int32) id.ID { return s.tracker.OriginRightAt(pos) }

// IDAt returns the id of the element currently visible at pos, used to
// build the delete op's target chain.
func (s *ListState) IDAt(pos int32) id.ID { return s.tracker.AtomIDAt(pos) }

// IDs returns the id_full of every currently-visible element, in buffer
// order — paired one-to-one with ToValue()'s items by the columnar
// container snapshot codec (§6).
func (s *ListState) IDs() []id.IDFull { return s.tracker.VisibleIDs() }

// ApplyInsert integrates one already-ordered atom (local or remote) and
// replays its effect into the value buffer, returning the diff.
func (s *ListState) ApplyInsert(atomID id.ID, lamport id.Lamport, originLeft, originRight id.ID, val value.Value) Diff {
	e := s.tracker.Insert(atomID, lamport, originLeft, originRight, val)
	return s.applyEffects([]fugue.Effect{e}, false)
}

// ApplyDelete marks the item at targetID deleted on behalf of delOpID. A
// deleted slot that held a nested container's ContainerRef orphans that
// container for real (Edit.HasDetached), unlike Retreat hiding the same
// slot for a checkout, which is reversible and must not tear anything down.
func (s *ListState) ApplyDelete(delOpID, targetID id.ID) Diff {
	e := s.tracker.Delete(delOpID, targetID)
	return s.applyEffects([]fugue.Effect{e}, true)
}

// Retreat/Forward re-anchor the tracker for checkout, replaying the
// resulting visibility changes into the buffer. Never permanent: hiding a
// container-holding slot this way is reversible by a later Forward, so it
// must not detach the child.
func (s *ListState) Retreat(spans []id.IDSpan) Diff {
	return s.applyEffects(s.tracker.Retreat(spans), false)
}
func (s *ListState) Forward(spans []id.IDSpan) Diff {
	return s.applyEffects(s.tracker.Forward(spans), false)
}

// Children returns the ids of every nested container currently live in
// this list's visible buffer.
func (s *ListState) Children() []cid.ContainerID {
	out := make([]cid.ContainerID, 0, len(s.childIndex))
	for c := range s.childIndex {
		out = append(out, c)
	}
	return out
}

func (s *ListState) applyEffects(effects []fugue.Effect, permanent bool) Diff {
	var out Diff
	for _, e := range effects {
		switch e.Kind {
		case fugue.EffectIns:
			items := make([]value.Value, len(e.Payload))
			for i, p := range e.Payload {
				items[i] = p.(value.Value)
			}
			s.buf = append(s.buf, make([]value.Value, len(items))...)
			copy(s.buf[e.Pos+int32(len(items)):], s.buf[e.Pos:])
			copy(s.buf[e.Pos:], items)
			s.shiftChildIndex(e.Pos, int32(len(items)))
			for i, v := range items {
				if v.Kind() == value.KindContainerRef {
					s.childIndex[v.AsContainerRef()] = e.Pos + int32(i)
				}
			}
			out = append(out, Edit{Kind: EditInsert, Pos: e.Pos, Items: items})
		case fugue.EffectDel:
			if e.Len == 0 {
				continue
			}
			removed := s.buf[e.Pos : e.Pos+e.Len]
			edit := Edit{Kind: EditDelete, Pos: e.Pos, Len: e.Len}
			for _, v := range removed {
				if v.Kind() == value.KindContainerRef {
					ref := v.AsContainerRef()
					delete(s.childIndex, ref)
					if permanent {
						edit.Detached, edit.HasDetached = ref, true
					}
				}
			}
			s.buf = append(s.buf[:e.Pos], s.buf[e.Pos+e.Len:]...)
			s.shiftChildIndex(e.Pos+e.Len, -e.Len)
			out = append(out, edit)
		}
	}
	return out
}

func (s *ListState) shiftChildIndex(fromPos, delta int32) {
	for cidKey, pos := range s.childIndex {
		if pos >= fromPos {
			s.childIndex[cidKey] = pos + delta
		}
	}
}

// Len returns the current visible length.
func (s *ListState) Len() int32 { return int32(len(s.buf)) }

// ChildSlot returns the current position of a nested container, if live.
func (s *ListState) ChildSlot(id cid.ContainerID) (int32, bool) {
	p, ok := s.childIndex[id]
	return p, ok
}

// ToValue materializes the list's current content.
func (s *ListState) ToValue() value.Value {
	return value.List(append([]value.Value(nil), s.buf...))
}
