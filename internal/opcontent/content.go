// Package opcontent implements the type-specific payload carried by each
// atomic Op: sequence insert/delete (shared by Text and List), Move, Set,
// and the paired StyleStart/StyleEnd markers.
//
// Every variant is mergeable (two adjacent ops by the same peer with
// abutting counters may fold into one run) and sliceable (the inverse, used
// when an id-span query only needs part of a stored run). This mirrors the
// "Op content" component of the spec: RLE-friendly payloads, not a single
// do-everything struct.
package opcontent

import (
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

// Kind discriminates a Content variant.
type Kind uint8

const (
	KindTextIns Kind = iota
	KindTextDel
	KindListIns
	KindListDel
	KindMove
	KindSet
	KindStyleStart
	KindStyleEnd
	KindMapDel
)

// Content is the shared capability set every op payload implements.
type Content interface {
	Kind() Kind
	// AtomLen is the unit-weight for point ops, unicode length for text,
	// slice length for list.
	AtomLen() int32
	// Mergeable reports whether other may be folded onto the end of this
	// content, assuming the caller has already checked ID/counter
	// adjacency.
	Mergeable(other Content) bool
	// Merge folds other (known Mergeable) onto the end of this content.
	Merge(other Content) Content
	// Slice returns the sub-range [from, to) of atoms, 0 <= from <= to <=
	// AtomLen().
	Slice(from, to int32) Content
}

// TextIns inserts Text (unicode code points) at Pos, anchored between
// OriginLeft/OriginRight in the author's view.
type TextIns struct {
	Pos         int32
	Text        []rune
	OriginLeft  id.ID
	OriginRight id.ID
}

func (t TextIns) Kind() Kind      { return KindTextIns }
func (t TextIns) AtomLen() int32  { return int32(len(t.Text)) }
func (t TextIns) Mergeable(o Content) bool {
	other, ok := o.(TextIns)
	return ok && other.Pos == t.Pos+t.AtomLen() && other.OriginLeft == id.ID{}
}
func (t TextIns) Merge(o Content) Content {
	other := o.(TextIns)
	return TextIns{Pos: t.Pos, Text: append(append([]rune(nil), t.Text...), other.Text...), OriginLeft: t.OriginLeft, OriginRight: t.OriginRight}
}
func (t TextIns) Slice(from, to int32) Content {
	return TextIns{Pos: t.Pos + from, Text: append([]rune(nil), t.Text[from:to]...), OriginLeft: t.OriginLeft, OriginRight: t.OriginRight}
}

// SeqDel deletes a span of Len atoms (sequence-agnostic: used by both Text
// and List) starting at the tracker position Pos. Len may be negative: a
// reversed span, used to RLE-merge backward-typed deletions (backspacing).
// IDStart is the id of the first atom this op consumes — per the pinned
// open question in SPEC_FULL.md §9, this is the authoring position, so
// slicing a reversed span re-anchors IDStart to the new leftmost id.
type SeqDel struct {
	Pos     int32
	Len     int32
	IDStart id.ID
	isList  bool
}

// NewSeqDel builds a delete content for either Text or List depending on
// isList, rejecting a zero length per the UsageError contract.
func NewSeqDel(pos, length int32, start id.ID, isList bool) (SeqDel, error) {
	if length == 0 {
		return SeqDel{}, crdterr.New(crdterr.Usage, "delete length must be non-zero")
	}
	return SeqDel{Pos: pos, Len: length, IDStart: start, isList: isList}, nil
}

func (d SeqDel) Kind() Kind {
	if d.isList {
		return KindListDel
	}
	return KindTextDel
}
func (d SeqDel) AtomLen() int32 {
	if d.Len < 0 {
		return -d.Len
	}
	return d.Len
}
func (d SeqDel) forward() bool { return d.Len > 0 }

func (d SeqDel) Mergeable(o Content) bool {
	other, ok := o.(SeqDel)
	if !ok || other.isList != d.isList || other.forward() != d.forward() {
		return false
	}
	if d.forward() {
		return other.Pos == d.Pos && other.IDStart.Peer == d.IDStart.Peer &&
			other.IDStart.Counter == d.IDStart.Counter+d.AtomLen()
	}
	// Backward (reversed) deletes: each subsequent delete removes the atom
	// just to the left of the previous one.
	return other.Pos == d.Pos-1
}

func (d SeqDel) Merge(o Content) Content {
	other := o.(SeqDel)
	if d.forward() {
		return SeqDel{Pos: d.Pos, Len: d.Len + other.Len, IDStart: d.IDStart, isList: d.isList}
	}
	return SeqDel{Pos: other.Pos, Len: d.Len - other.AtomLen(), IDStart: other.IDStart, isList: d.isList}
}

// Targets returns the per-atom target ids this delete run consumes, in run
// order: IDStart, IDStart+1, ... for a forward run, or IDStart, IDStart-1,
// ... for a reversed (backspacing) run — the convention Slice's reversed
// branch already assumes when it re-anchors IDStart.
func (d SeqDel) Targets() []id.ID {
	n := d.AtomLen()
	out := make([]id.ID, n)
	step := int32(1)
	if !d.forward() {
		step = -1
	}
	for i := int32(0); i < n; i++ {
		out[i] = id.ID{Peer: d.IDStart.Peer, Counter: d.IDStart.Counter + i*step}
	}
	return out
}

func (d SeqDel) Slice(from, to int32) Content {
	n := to - from
	if d.forward() {
		return SeqDel{Pos: d.Pos, Len: n, IDStart: id.ID{Peer: d.IDStart.Peer, Counter: d.IDStart.Counter + from}, isList: d.isList}
	}
	// Reversed: slicing [from,to) keeps the portion deleted between the
	// `from`-th and `to`-th backspace; re-anchor IDStart to the new
	// leftmost surviving id, per the pinned open question.
	newStart := id.ID{Peer: d.IDStart.Peer, Counter: d.IDStart.Counter - to + 1}
	return SeqDel{Pos: d.Pos, Len: -n, IDStart: newStart, isList: d.isList}
}

// ListIns inserts a slice of Values at Pos.
type ListIns struct {
	Pos         int32
	Items       []value.Value
	OriginLeft  id.ID
	OriginRight id.ID
}

func (l ListIns) Kind() Kind     { return KindListIns }
func (l ListIns) AtomLen() int32 { return int32(len(l.Items)) }
func (l ListIns) Mergeable(o Content) bool {
	other, ok := o.(ListIns)
	return ok && other.Pos == l.Pos+l.AtomLen()
}
func (l ListIns) Merge(o Content) Content {
	other := o.(ListIns)
	return ListIns{Pos: l.Pos, Items: append(append([]value.Value(nil), l.Items...), other.Items...), OriginLeft: l.OriginLeft, OriginRight: l.OriginRight}
}
func (l ListIns) Slice(from, to int32) Content {
	return ListIns{Pos: l.Pos + from, Items: append([]value.Value(nil), l.Items[from:to]...), OriginLeft: l.OriginLeft, OriginRight: l.OriginRight}
}

// Move relocates the movable-list element identified by Elem from FromPos
// to ToPos. Elem is (peer, lamport) — stable across moves.
type Move struct {
	Elem    id.IDFull
	FromPos int32
	ToPos   int32
}

func (m Move) Kind() Kind               { return KindMove }
func (m Move) AtomLen() int32           { return 1 }
func (m Move) Mergeable(Content) bool   { return false }
func (m Move) Merge(Content) Content    { crdterr.Fatalf("opcontent: Move is never mergeable"); return nil }
func (m Move) Slice(int32, int32) Content { return m }

// Set overwrites a map key, or (when Elem is non-zero) a movable-list
// element's value — the two containers share this op shape since both
// resolve a concurrent same-target Set the same way, by (lamport, peer).
type Set struct {
	Key   string
	Elem  id.IDFull
	Value value.Value
}

func (s Set) Kind() Kind               { return KindSet }
func (s Set) AtomLen() int32           { return 1 }
func (s Set) Mergeable(Content) bool   { return false }
func (s Set) Merge(Content) Content    { crdterr.Fatalf("opcontent: Set is never mergeable"); return nil }
func (s Set) Slice(int32, int32) Content { return s }

// MapDel tombstones a map key, distinct from Set{Value: Null} so replay can
// tell "explicitly deleted, Keys() stops reporting it" apart from "set to
// null, still a live entry."
type MapDel struct {
	Key string
}

func (d MapDel) Kind() Kind               { return KindMapDel }
func (d MapDel) AtomLen() int32           { return 1 }
func (d MapDel) Mergeable(Content) bool   { return false }
func (d MapDel) Merge(Content) Content    { crdterr.Fatalf("opcontent: MapDel is never mergeable"); return nil }
func (d MapDel) Slice(int32, int32) Content { return d }

// StyleStart begins a style range at Pos, the tracker position in the
// author's view at authoring time (the same "position, not anchor"
// convention TextIns and SeqDel use — it shifts implicitly as later
// inserts/deletes replay around it, it is not re-resolved against an id).
type StyleStart struct {
	Pos   int32
	Key   string
	Value value.Value
}

func (s StyleStart) Kind() Kind               { return KindStyleStart }
func (s StyleStart) AtomLen() int32           { return 1 }
func (s StyleStart) Mergeable(Content) bool   { return false }
func (s StyleStart) Merge(Content) Content    { crdterr.Fatalf("opcontent: StyleStart is never mergeable"); return nil }
func (s StyleStart) Slice(int32, int32) Content { return s }

// StyleEnd closes the style range opened by the matching StyleStart, at Pos.
type StyleEnd struct {
	Pos int32
	Key string
}

func (s StyleEnd) Kind() Kind               { return KindStyleEnd }
func (s StyleEnd) AtomLen() int32           { return 1 }
func (s StyleEnd) Mergeable(Content) bool   { return false }
func (s StyleEnd) Merge(Content) Content    { crdterr.Fatalf("opcontent: StyleEnd is never mergeable"); return nil }
func (s StyleEnd) Slice(int32, int32) Content { return s }
