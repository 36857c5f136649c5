package state

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

type movableElem struct {
	id        id.IDFull // stable identity, never changes across moves
	value     value.Value
	pos       int32 // current position among live elements
	tombstone bool

	// lastMove/lastSet track the author of the most recent accepted write
	// to each facet, so a concurrent Move and a concurrent Set on the same
	// element resolve independently (a move never loses to a set, nor the
	// reverse — only same-facet writes contend).
	lastMove id.IDFull
	lastSet  id.IDFull
}

// MovableListState is the MovableList container: elements keyed by a
// stable elem_id = (peer, lamport) assigned at creation, independent of
// position. Concurrent moves of the same element tie-break on higher
// (lamport, peer); concurrent sets tie-break the same way, independently
// of moves.
type MovableListState struct {
	order []*movableElem // live order, by current position
	byID  map[id.ID]*movableElem
}

// NewMovableListState returns an empty movable-list container state.
func NewMovableListState() *MovableListState {
	return &MovableListState{byID: make(map[id.ID]*movableElem)}
}

// Clone returns a deep copy, used by the document's transaction guard to
// set aside the pre-transaction state before the first mutation in a scope.
func (s *MovableListState) Clone() *MovableListState {
	out := &MovableListState{order: make([]*movableElem, len(s.order)), byID: make(map[id.ID]*movableElem, len(s.byID))}
	for i, e := range s.order {
		cp := *e
		out.order[i] = &cp
		out.byID[cp.id.ID] = &cp
	}
	return out
}

// Insert creates a brand-new element at pos with the given stable id.
func (s *MovableListState) Insert(pos int32, val value.Value, elemID id.IDFull) Diff {
	e := &movableElem{id: elemID, value: val, pos: pos, lastMove: elemID, lastSet: elemID}
	s.byID[elemID.ID] = e
	s.order = append(s.order, nil)
	copy(s.order[pos+1:], s.order[pos:])
	s.order[pos] = e
	s.renumber()
	return Diff{{Kind: EditInsert, Pos: pos, Items: []value.Value{val}}}
}

// Move relocates the element identified by elemID to toPos, if author wins
// the tie-break against the element's last mover.
func (s *MovableListState) Move(elemID id.ID, toPos int32, author id.IDFull) Diff {
	e, ok := s.byID[elemID]
	if !ok || e.tombstone {
		return nil
	}
	if !e.lastMove.Less(author) {
		return nil // existing move wins or ties in its own favor
	}
	fromPos := e.pos
	if fromPos == toPos {
		e.lastMove = author
		return nil
	}
	s.removeFromOrder(e)
	s.insertIntoOrder(e, toPos)
	e.lastMove = author
	s.renumber()
	return Diff{{Kind: EditMove, From: fromPos, To: toPos, Elem: e.id}}
}

// Set overwrites the element's value if author wins the tie-break against
// the element's last setter.
func (s *MovableListState) Set(elemID id.ID, val value.Value, author id.IDFull) Diff {
	e, ok := s.byID[elemID]
	if !ok || e.tombstone {
		return nil
	}
	if !e.lastSet.Less(author) {
		return nil
	}
	edit := Edit{Kind: EditSet, Pos: e.pos, Value: val}
	if ref, ok := refOf(e.value); ok {
		edit.Detached, edit.HasDetached = ref, true
	}
	e.value = val
	e.lastSet = author
	return Diff{edit}
}

// Delete tombstones the element, removing it from the live order. An
// element holding a nested container's ContainerRef orphans that container
// for real: unlike Text/List, MovableList has no retreat/forward path, so
// every Delete here is permanent.
func (s *MovableListState) Delete(elemID id.ID) Diff {
	e, ok := s.byID[elemID]
	if !ok || e.tombstone {
		return nil
	}
	pos := e.pos
	edit := Edit{Kind: EditDelete, Pos: pos, Len: 1}
	if ref, ok := refOf(e.value); ok {
		edit.Detached, edit.HasDetached = ref, true
	}
	s.removeFromOrder(e)
	e.tombstone = true
	s.renumber()
	return Diff{edit}
}

// Elem is one live element's (value, id_full) pair, in current position
// order — used by the columnar container snapshot codec (§6).
type Elem struct {
	Value value.Value
	ID    id.IDFull
}

// Elements returns every live element's (value, id_full) pair, in current
// position order.
func (s *MovableListState) Elements() []Elem {
	out := make([]Elem, 0, len(s.order))
	for _, e := range s.order {
		if !e.tombstone {
			out = append(out, Elem{Value: e.value, ID: e.id})
		}
	}
	return out
}

// Children returns the ids of every nested container currently live
// (non-tombstoned) in this list.
func (s *MovableListState) Children() []cid.ContainerID {
	var out []cid.ContainerID
	for _, e := range s.order {
		if e.tombstone {
			continue
		}
		if ref, ok := refOf(e.value); ok {
			out = append(out, ref)
		}
	}
	return out
}

// ToValue materializes the live order as a value.Value list.
func (s *MovableListState) ToValue() value.Value {
	out := make([]value.Value, 0, len(s.order))
	for _, e := range s.order {
		if !e.tombstone {
			out = append(out, e.value)
		}
	}
	return value.List(out)
}

func (s *MovableListState) removeFromOrder(e *movableElem) {
	idx := -1
	for i, o := range s.order {
		if o == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.order = append(s.order[:idx], s.order[idx+1:]...)
}

func (s *MovableListState) insertIntoOrder(e *movableElem, pos int32) {
	s.order = append(s.order, nil)
	copy(s.order[pos+1:], s.order[pos:])
	s.order[pos] = e
}

func (s *MovableListState) renumber() {
	for i, e := range s.order {
		e.pos = int32(i)
	}
}
