package doc

import (
	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
	"github.com/Polqt/crdtcollab/internal/value"
)

// Text returns a handle onto the root Text container named name, creating
// an empty one on first reference.
func (txn *Txn) Text(name string) *TextHandle {
	c := txn.touch(txn.doc.ensureRoot(name, cid.TypeText))
	return &TextHandle{txn: txn, c: c}
}

// List returns a handle onto the root List container named name.
func (txn *Txn) List(name string) *ListHandle {
	c := txn.touch(txn.doc.ensureRoot(name, cid.TypeList))
	return &ListHandle{txn: txn, c: c}
}

// MovableList returns a handle onto the root MovableList container named
// name.
func (txn *Txn) MovableList(name string) *MovableListHandle {
	c := txn.touch(txn.doc.ensureRoot(name, cid.TypeMovableList))
	return &MovableListHandle{txn: txn, c: c}
}

// Map returns a handle onto the root Map container named name.
func (txn *Txn) Map(name string) *MapHandle {
	c := txn.touch(txn.doc.ensureRoot(name, cid.TypeMap))
	return &MapHandle{txn: txn, c: c}
}

// OpenText, OpenList, OpenMovableList, OpenMap resolve a nested container
// reference — returned by InsertContainer/SetContainer, or read back out of
// a parent's Get — into the matching typed handle. ref.Type() must match;
// callers that don't already know it can branch on ref.Type() first. Each
// returns a UsageError if ref names a container a recursive teardown has
// already detached (§7): a deleted slot's ref must not resurrect a zombie
// container, nor let a stale handle keep mutating an orphaned one.
func (txn *Txn) OpenText(ref cid.ContainerID) (*TextHandle, error) {
	c, err := txn.doc.openChild(ref)
	if err != nil {
		return nil, err
	}
	return &TextHandle{txn: txn, c: txn.touch(c)}, nil
}
func (txn *Txn) OpenList(ref cid.ContainerID) (*ListHandle, error) {
	c, err := txn.doc.openChild(ref)
	if err != nil {
		return nil, err
	}
	return &ListHandle{txn: txn, c: txn.touch(c)}, nil
}
func (txn *Txn) OpenMovableList(ref cid.ContainerID) (*MovableListHandle, error) {
	c, err := txn.doc.openChild(ref)
	if err != nil {
		return nil, err
	}
	return &MovableListHandle{txn: txn, c: txn.touch(c)}, nil
}
func (txn *Txn) OpenMap(ref cid.ContainerID) (*MapHandle, error) {
	c, err := txn.doc.openChild(ref)
	if err != nil {
		return nil, err
	}
	return &MapHandle{txn: txn, c: txn.touch(c)}, nil
}

// TextHandle edits one Text container within a transaction.
type TextHandle struct {
	txn *Txn
	c   *container.Container
}

// Insert inserts s at the rune position pos.
func (h *TextHandle) Insert(pos int32, s string) error {
	st := h.c.Text()
	if pos < 0 || pos > st.Len() {
		return crdterr.New(crdterr.Usage, "text insert: position %d out of range [0, %d]", pos, st.Len())
	}
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	originLeft := st.OriginAt(pos)
	originRight := st.OriginRightAt(pos)
	first, lamport := h.txn.nextAtom(int32(len(runes)))
	origin := originLeft
	for i, r := range runes {
		atomID := id.ID{Peer: first.Peer, Counter: first.Counter + int32(i)}
		diff := st.ApplyInsert(atomID, lamport+id.Lamport(i), origin, originRight, r)
		h.txn.appendDiff(h.c.ID, diff)
		origin = atomID
	}
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.TextIns{Pos: pos, Text: runes, OriginLeft: originLeft, OriginRight: originRight})
	return nil
}

// Delete removes length runes starting at pos.
func (h *TextHandle) Delete(pos, length int32) error {
	st := h.c.Text()
	if length <= 0 || pos < 0 || pos+length > st.Len() {
		return crdterr.New(crdterr.Usage, "text delete: range [%d, %d) out of bounds", pos, pos+length)
	}
	first, _ := h.txn.nextAtom(length)
	idStart := st.IDAt(pos)
	for i := int32(0); i < length; i++ {
		target := st.IDAt(pos)
		delOpID := id.ID{Peer: first.Peer, Counter: first.Counter + i}
		diff := st.ApplyDelete(delOpID, target)
		h.txn.appendDiff(h.c.ID, diff)
	}
	del, err := opcontent.NewSeqDel(pos, length, idStart, false)
	if err != nil {
		return err
	}
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), del)
	return nil
}

// Mark applies a style range [from, to) under key with value val.
func (h *TextHandle) Mark(from, to int32, key string, val value.Value) error {
	st := h.c.Text()
	if from < 0 || to > st.Len() || from >= to {
		return crdterr.New(crdterr.Usage, "text mark: invalid range [%d, %d)", from, to)
	}
	first, lamport := h.txn.nextAtom(2)
	startID := first
	endID := id.ID{Peer: first.Peer, Counter: first.Counter + 1}
	author := id.IDFull{ID: startID, Lamport: lamport}
	st.OpenStyle(from, key, val, author)
	diff := st.CloseStyle(to, key)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(startID.Counter, h.txn.containerIdx(h.c.ID), opcontent.StyleStart{Pos: from, Key: key, Value: val})
	h.txn.appendOp(endID.Counter, h.txn.containerIdx(h.c.ID), opcontent.StyleEnd{Pos: to, Key: key})
	return nil
}

// Len returns the current visible rune length.
func (h *TextHandle) Len() int32 { return h.c.Text().Len() }

// String returns the current materialized text.
func (h *TextHandle) String() string { return h.c.Text().ToValue().AsString() }

// StyleAt returns the winning style value for key at pos.
func (h *TextHandle) StyleAt(pos int32, key string) (value.Value, bool) { return h.c.Text().StyleAt(pos, key) }

// ListHandle edits one List container within a transaction.
type ListHandle struct {
	txn *Txn
	c   *container.Container
}

// Insert inserts vals starting at pos.
func (h *ListHandle) Insert(pos int32, vals ...value.Value) error {
	st := h.c.List()
	if pos < 0 || pos > st.Len() {
		return crdterr.New(crdterr.Usage, "list insert: position %d out of range [0, %d]", pos, st.Len())
	}
	if len(vals) == 0 {
		return nil
	}
	originLeft := st.OriginAt(pos)
	originRight := st.OriginRightAt(pos)
	first, lamport := h.txn.nextAtom(int32(len(vals)))
	origin := originLeft
	for i, v := range vals {
		atomID := id.ID{Peer: first.Peer, Counter: first.Counter + int32(i)}
		diff := st.ApplyInsert(atomID, lamport+id.Lamport(i), origin, originRight, v)
		h.txn.appendDiff(h.c.ID, diff)
		origin = atomID
	}
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.ListIns{Pos: pos, Items: append([]value.Value(nil), vals...), OriginLeft: originLeft, OriginRight: originRight})
	return nil
}

// InsertContainer inserts a brand-new nested container of kind at pos and
// returns its id; the caller opens it via Txn.OpenText/OpenList/etc.
func (h *ListHandle) InsertContainer(pos int32, kind cid.Type) (cid.ContainerID, error) {
	// nextAtom(0) reserves nothing: it yields the id the Insert below gives
	// the ref, so the container is named after the op that creates it.
	first, _ := h.txn.nextAtom(0)
	ref := cid.Normal(first, kind)
	if err := h.Insert(pos, value.ContainerRef(ref)); err != nil {
		return cid.ContainerID{}, err
	}
	h.txn.doc.ensureChild(ref)
	return ref, nil
}

// Delete removes length elements starting at pos.
func (h *ListHandle) Delete(pos, length int32) error {
	st := h.c.List()
	if length <= 0 || pos < 0 || pos+length > st.Len() {
		return crdterr.New(crdterr.Usage, "list delete: range [%d, %d) out of bounds", pos, pos+length)
	}
	first, _ := h.txn.nextAtom(length)
	idStart := st.IDAt(pos)
	for i := int32(0); i < length; i++ {
		target := st.IDAt(pos)
		delOpID := id.ID{Peer: first.Peer, Counter: first.Counter + i}
		diff := st.ApplyDelete(delOpID, target)
		h.txn.appendDiff(h.c.ID, diff)
	}
	del, err := opcontent.NewSeqDel(pos, length, idStart, true)
	if err != nil {
		return err
	}
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), del)
	return nil
}

// Len returns the current visible length.
func (h *ListHandle) Len() int32 { return h.c.List().Len() }

// ToValue materializes the list's current content.
func (h *ListHandle) ToValue() value.Value { return h.c.List().ToValue() }

// MapHandle edits one Map container within a transaction.
type MapHandle struct {
	txn *Txn
	c   *container.Container
}

// Set writes key to val.
func (h *MapHandle) Set(key string, val value.Value) {
	first, lamport := h.txn.nextAtom(1)
	author := id.IDFull{ID: first, Lamport: lamport}
	diff := h.c.Map().Set(key, val, author)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.Set{Key: key, Value: val})
}

// SetContainer writes key to a brand-new nested container of kind and
// returns its id.
func (h *MapHandle) SetContainer(key string, kind cid.Type) cid.ContainerID {
	// nextAtom(0) reserves nothing: it yields the id the Set below gives the
	// ref, so the container is named after the op that creates it.
	first, _ := h.txn.nextAtom(0)
	ref := cid.Normal(first, kind)
	h.Set(key, value.ContainerRef(ref))
	h.txn.doc.ensureChild(ref)
	return ref
}

// Delete removes key.
func (h *MapHandle) Delete(key string) {
	first, lamport := h.txn.nextAtom(1)
	author := id.IDFull{ID: first, Lamport: lamport}
	diff := h.c.Map().Delete(key, author)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.MapDel{Key: key})
}

// Get returns the live value at key.
func (h *MapHandle) Get(key string) (value.Value, bool) { return h.c.Map().Get(key) }

// Keys returns every live key.
func (h *MapHandle) Keys() []string { return h.c.Map().Keys() }

// MovableListHandle edits one MovableList container within a transaction.
type MovableListHandle struct {
	txn *Txn
	c   *container.Container
}

// Insert creates a new element at pos holding val, returning its stable
// elem id (used by later Move/Set/Delete calls). Wire-encoded as a ListIns
// of one item: identical shape to a List insert, disambiguated on replay by
// the target container's Kind rather than by a dedicated op variant.
func (h *MovableListHandle) Insert(pos int32, val value.Value) id.IDFull {
	first, lamport := h.txn.nextAtom(1)
	elemID := id.IDFull{ID: first, Lamport: lamport}
	diff := h.c.MovableList().Insert(pos, val, elemID)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.ListIns{Pos: pos, Items: []value.Value{val}})
	return elemID
}

// InsertContainer creates a new element at pos holding a brand-new nested
// container of kind, returning the element's stable id and the container's
// id.
func (h *MovableListHandle) InsertContainer(pos int32, kind cid.Type) (id.IDFull, cid.ContainerID) {
	first, lamport := h.txn.nextAtom(1)
	elemID := id.IDFull{ID: first, Lamport: lamport}
	ref := cid.Normal(first, kind)
	diff := h.c.MovableList().Insert(pos, value.ContainerRef(ref), elemID)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.ListIns{Pos: pos, Items: []value.Value{value.ContainerRef(ref)}})
	h.txn.doc.ensureChild(ref)
	return elemID, ref
}

// Move relocates elem to toPos.
func (h *MovableListHandle) Move(elem id.IDFull, toPos int32) {
	first, lamport := h.txn.nextAtom(1)
	author := id.IDFull{ID: first, Lamport: lamport}
	diff := h.c.MovableList().Move(elem.ID, toPos, author)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.Move{Elem: elem, FromPos: -1, ToPos: toPos})
}

// Set overwrites elem's value.
func (h *MovableListHandle) Set(elem id.IDFull, val value.Value) {
	first, lamport := h.txn.nextAtom(1)
	author := id.IDFull{ID: first, Lamport: lamport}
	diff := h.c.MovableList().Set(elem.ID, val, author)
	h.txn.appendDiff(h.c.ID, diff)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), opcontent.Set{Elem: elem, Value: val})
}

// Delete tombstones elem. Wire-encoded as a single-atom ListDel whose
// IDStart is the element's own stable id rather than a position-derived
// target — MovableList addresses by elem id, not tracker position.
func (h *MovableListHandle) Delete(elem id.IDFull) {
	first, _ := h.txn.nextAtom(1)
	diff := h.c.MovableList().Delete(elem.ID)
	h.txn.appendDiff(h.c.ID, diff)
	del, _ := opcontent.NewSeqDel(0, 1, elem.ID, true)
	h.txn.appendOp(first.Counter, h.txn.containerIdx(h.c.ID), del)
}

// ToValue materializes the movable list's current content.
func (h *MovableListHandle) ToValue() value.Value { return h.c.MovableList().ToValue() }
