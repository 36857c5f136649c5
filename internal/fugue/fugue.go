// Package fugue implements the sequence CRDT tracker: a Fugue-style
// position resolver shared by the Text and List containers. It maps
// remote insert/delete operations — authored at arbitrary historical
// versions — onto current linear positions, and supports retreat/forward
// re-anchoring so a container can be checked out to any frontier.
//
// Scope note (see DESIGN.md): spans are tracked one atom at a time rather
// than as RLE runs in a balanced tree. The OpLog still RLE-merges ops for
// storage; this trades the spec's O(log n) asymptotics for a tracker whose
// correctness is easy to state and test, which the effort budget for this
// pass prioritizes over asymptotic fidelity. iter_effects coalesces
// adjacent same-kind atoms back into runs before they reach the caller, so
// the shape of what containers receive matches the spec either way.
package fugue

import (
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
)

// Status is an atom's current visibility.
type Status int8

const (
	// StatusFuture: the insert that created this atom has been retreated
	// past — not yet part of the current view.
	StatusFuture Status = iota
	// StatusInserted: visible in the current view.
	StatusInserted
	// StatusDeleted: the insert is known but at least one active delete
	// currently hides it.
	StatusDeleted
)

type atom struct {
	id          id.ID
	lamport     id.Lamport
	originLeft  id.ID // zero ID means "document start"
	originRight id.ID // zero ID means "document end" (no right neighbor at authoring time)
	inserted    bool  // has the owning insert been forwarded into view
	delCount    int   // number of currently-forwarded deletes targeting this atom
	payload     any
}

func (a *atom) status() Status {
	switch {
	case !a.inserted:
		return StatusFuture
	case a.delCount > 0:
		return StatusDeleted
	default:
		return StatusInserted
	}
}

func (a *atom) visible() bool { return a.inserted && a.delCount == 0 }

// EffectKind discriminates an emitted effect.
type EffectKind int8

const (
	EffectIns EffectKind = iota
	EffectDel
)

// Effect is one Ins/Del instruction for the container state to apply, in
// linear position order, expressed against the state prior to the effect.
type Effect struct {
	Kind    EffectKind
	Pos     int32
	Payload []any // set for EffectIns, one entry per inserted atom
	Len     int32 // set for EffectDel
}

// Tracker is the Fugue sequence tracker for one container.
type Tracker struct {
	order      []*atom
	atomsByID  map[id.ID]*atom
	delTargets map[id.ID]id.ID // delete-op atom id -> target atom id
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{atomsByID: make(map[id.ID]*atom), delTargets: make(map[id.ID]id.ID)}
}

// Clone returns a deep copy: a transaction sets a clone aside before its
// first mutation and reinstalls that clone on error, rather than computing
// and replaying inverse effects.
func (t *Tracker) Clone() *Tracker {
	out := &Tracker{
		order:      make([]*atom, len(t.order)),
		atomsByID:  make(map[id.ID]*atom, len(t.atomsByID)),
		delTargets: make(map[id.ID]id.ID, len(t.delTargets)),
	}
	for i, a := range t.order {
		cp := *a
		out.order[i] = &cp
		out.atomsByID[cp.id] = &cp
	}
	for k, v := range t.delTargets {
		out.delTargets[k] = v
	}
	return out
}

// Len returns the number of currently-visible atoms.
func (t *Tracker) Len() int32 {
	var n int32
	for _, a := range t.order {
		if a.visible() {
			n++
		}
	}
	return n
}

// VisibleIDs returns the (id, lamport) of every currently-visible atom, in
// linear position order — the per-element id_full stream the columnar
// container snapshot codec (§6) pairs with each materialized value.
func (t *Tracker) VisibleIDs() []id.IDFull {
	out := make([]id.IDFull, 0, t.Len())
	for _, a := range t.order {
		if a.visible() {
			out = append(out, id.IDFull{ID: a.id, Lamport: a.lamport})
		}
	}
	return out
}

// OriginsAt returns the origin-left id for a new local insert at visible
// position pos (0..Len()). Zero ID means "document start".
func (t *Tracker) OriginsAt(pos int32) id.ID {
	if pos == 0 {
		return id.ID{}
	}
	var seen int32
	for _, a := range t.order {
		if !a.visible() {
			continue
		}
		seen++
		if seen == pos {
			return a.id
		}
	}
	return id.ID{}
}

// OriginRightAt returns the origin-right id for a new local insert at
// visible position pos: the atom currently visible at pos, which the new
// insert will land immediately before. Zero ID means "document end" (pos
// == Len(), no right neighbor).
func (t *Tracker) OriginRightAt(pos int32) id.ID {
	var seen int32
	for _, a := range t.order {
		if !a.visible() {
			continue
		}
		if seen == pos {
			return a.id
		}
		seen++
	}
	return id.ID{}
}

// AtomIDAt returns the id of the currently-visible atom at position pos
// (0-indexed), fatal if pos is out of range. Delete handles call this once
// per deleted atom: since each deletion shifts the next surviving atom into
// pos, calling at the same pos repeatedly walks a contiguous delete forward.
func (t *Tracker) AtomIDAt(pos int32) id.ID {
	var seen int32
	for _, a := range t.order {
		if !a.visible() {
			continue
		}
		if seen == pos {
			return a.id
		}
		seen++
	}
	crdterr.Fatalf("fugue: position %d out of range", pos)
	return id.ID{}
}

func (t *Tracker) indexOf(target id.ID) int {
	for i, a := range t.order {
		if a.id == target {
			return i
		}
	}
	return -1
}

// anchorIndex returns indexOf(target), or -1 for the zero ID sentinel
// ("document start").
func (t *Tracker) anchorIndex(target id.ID) int {
	if !target.Valid() {
		return -1
	}
	return t.indexOf(target)
}

func (t *Tracker) posBefore(idx int) int32 {
	var n int32
	for i := 0; i < idx; i++ {
		if t.order[i].visible() {
			n++
		}
	}
	return n
}

// siblingBefore reports whether a should sort before b as Fugue siblings
// sharing the same origin-left: higher lamport first, ties broken by
// ascending peer.
func siblingBefore(a, b id.IDFull) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport > b.Lamport
	}
	return a.ID.Peer < b.ID.Peer
}

// rightBound returns the tree index of originRight, the right boundary of
// an Insert's integration scan: len(order) ("document end") for the zero
// ID sentinel or an id not yet in the tree.
func (t *Tracker) rightBound(originRight id.ID) int {
	if !originRight.Valid() {
		return len(t.order)
	}
	if idx := t.indexOf(originRight); idx >= 0 {
		return idx
	}
	return len(t.order)
}

// Insert adds a brand-new atom (an op never seen by this tracker before)
// anchored between originLeft and originRight, applying the Fugue sibling
// order rule against any concurrent atoms already anchored at the same
// point. The atom starts visible (StatusInserted): Insert represents the
// op being integrated at the tracker's current head, not a later checkout.
//
// origin_right bounds the scan and, for an item sharing our origin-left,
// distinguishes a true sibling (same origin-left AND the same
// origin-right, genuinely concurrent with us) from an item merely nested
// inside our span (a narrower origin-right, meaning it belongs to an
// already-resolved run anchored between us and our right neighbor) — the
// nested case is scanned past without comparing ids, or two concurrent
// backward-typed (prepend) sequences sharing an origin-left would
// interleave character by character instead of each staying contiguous.
func (t *Tracker) Insert(atomID id.ID, lamport id.Lamport, originLeft, originRight id.ID, payload any) Effect {
	leftIdx := t.anchorIndex(originLeft)
	rightIdx := t.rightBound(originRight)
	newFull := id.IDFull{ID: atomID, Lamport: lamport}

	// YATA-style integration scan (Yjs/Fugue lineage): walk right from the
	// anchor up to rightIdx. scanning marks that the item at j is nested
	// under a sibling rather than a genuine competitor for our slot;
	// destIdx only advances past items that are not.
	destIdx := leftIdx + 1
	scanning := false
	j := leftIdx + 1
scan:
	for j < rightIdx {
		o := t.order[j]
		oLeftIdx := t.anchorIndex(o.originLeft)
		switch {
		case oLeftIdx < leftIdx:
			break scan
		case oLeftIdx == leftIdx:
			oRightIdx := t.rightBound(o.originRight)
			switch {
			case oRightIdx == rightIdx:
				existing := id.IDFull{ID: o.id, Lamport: o.lamport}
				if siblingBefore(newFull, existing) {
					break scan
				}
				scanning = false
			case oRightIdx < rightIdx:
				scanning = true
			default:
				scanning = false
			}
		}
		if !scanning {
			destIdx = j + 1
		}
		j++
	}

	a := &atom{id: atomID, lamport: lamport, originLeft: originLeft, originRight: originRight, inserted: true, payload: payload}
	t.order = append(t.order, nil)
	copy(t.order[destIdx+1:], t.order[destIdx:])
	t.order[destIdx] = a
	t.atomsByID[atomID] = a

	return Effect{Kind: EffectIns, Pos: t.posBefore(destIdx), Payload: []any{payload}}
}

// Delete marks the atom targetID as deleted on behalf of delOpID (the
// delete op's own, distinct, id — retained so a later retreat/forward of
// the delete op itself can find its target).
func (t *Tracker) Delete(delOpID, targetID id.ID) Effect {
	a, ok := t.atomsByID[targetID]
	if !ok {
		// Concurrent delete of an insert this tracker has not integrated
		// yet is a caller ordering bug: integration always inserts before
		// it can be targeted, by causal delivery.
		panic("fugue: delete target not known: " + targetID.String())
	}
	t.delTargets[delOpID] = targetID
	wasVisible := a.visible()
	a.delCount++
	if !wasVisible {
		return Effect{Kind: EffectDel, Pos: -1, Len: 0} // no visible change
	}
	pos := t.posBefore(t.indexOf(targetID))
	return Effect{Kind: EffectDel, Pos: pos, Len: 1}
}

// Retreat undoes the effect of the ops named by spans (inserts become
// invisible, deletes are lifted) without removing them from the tree.
func (t *Tracker) Retreat(spans []id.IDSpan) []Effect {
	return t.shift(spans, false)
}

// Forward re-applies the effect of previously-retreated ops named by
// spans. It is the exact inverse of Retreat.
func (t *Tracker) Forward(spans []id.IDSpan) []Effect {
	return t.shift(spans, true)
}

func (t *Tracker) shift(spans []id.IDSpan, forward bool) []Effect {
	var effects []Effect
	for _, span := range spans {
		for c := span.Start; c < span.End(); c++ {
			target := id.ID{Peer: span.Peer, Counter: c}
			effects = append(effects, t.shiftOne(target, forward)...)
		}
	}
	return coalesce(effects)
}

func (t *Tracker) shiftOne(opID id.ID, forward bool) []Effect {
	if a, ok := t.atomsByID[opID]; ok {
		wasVisible := a.visible()
		a.inserted = forward
		nowVisible := a.visible()
		return t.visibilityEffect(a, wasVisible, nowVisible)
	}
	if target, ok := t.delTargets[opID]; ok {
		a := t.atomsByID[target]
		wasVisible := a.visible()
		if forward {
			a.delCount++
		} else {
			a.delCount--
		}
		nowVisible := a.visible()
		return t.visibilityEffect(a, wasVisible, nowVisible)
	}
	panic("fugue: shift of unknown op id " + opID.String())
}

func (t *Tracker) visibilityEffect(a *atom, wasVisible, nowVisible bool) []Effect {
	pos := t.posBefore(t.indexOf(a.id))
	switch {
	case wasVisible && !nowVisible:
		return []Effect{{Kind: EffectDel, Pos: pos, Len: 1}}
	case !wasVisible && nowVisible:
		return []Effect{{Kind: EffectIns, Pos: pos, Payload: []any{a.payload}}}
	default:
		return nil
	}
}

// coalesce merges adjacent same-kind effects at contiguous positions into
// runs, and drops no-op deletes of already-invisible atoms.
func coalesce(effects []Effect) []Effect {
	out := effects[:0]
	for _, e := range effects {
		if e.Kind == EffectDel && e.Len == 0 {
			continue
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Kind == e.Kind {
				switch e.Kind {
				case EffectIns:
					if last.Pos+int32(len(last.Payload)) == e.Pos {
						last.Payload = append(last.Payload, e.Payload...)
						continue
					}
				case EffectDel:
					if last.Pos == e.Pos {
						last.Len += e.Len
						continue
					}
				}
			}
		}
		out = append(out, e)
	}
	return out
}
