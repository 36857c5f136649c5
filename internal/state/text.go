package state

import (
	"github.com/Polqt/crdtcollab/internal/fugue"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

type styleSpan struct {
	from, to int32
	key      string
	val      value.Value
	author   id.IDFull
}

// TextState is the Text container: Fugue-ordered runes plus a style range
// map. Per the scope note in internal/fugue, this keeps a flat []rune
// buffer instead of a chunked rope — chunking is a storage-layout
// optimization the spec allows but does not require for correctness.
//
// Style ranges are tracked by current buffer position rather than by
// stable anchor id: inserts/deletes shift span boundaries the same way
// they shift childIndex in ListState. This resolves cleanly for styling
// applied after the fact (the common case — select then bold) but, unlike
// a true anchor-based rope, a style boundary that falls exactly on a
// concurrently-inserted character's position may include or exclude that
// character depending on integration order rather than authorial intent.
// Acceptable given the container's demo-surface styling use (§4.7); a
// production rope would anchor spans to the atom ids either side.
type TextState struct {
	tracker *fugue.Tracker
	buf     []rune
	styles  map[string][]styleSpan

	// opens holds StyleStart markers not yet matched by a StyleEnd, one
	// stack per key (innermost-open-closes-first), bridging the two op
	// applications whether they land in the same transaction or arrive in
	// separate remote integrations.
	opens map[string][]pendingStyle
}

type pendingStyle struct {
	pos    int32
	val    value.Value
	author id.IDFull
}

// NewTextState returns an empty text container state.
func NewTextState() *TextState {
	return &TextState{tracker: fugue.New(), styles: make(map[string][]styleSpan), opens: make(map[string][]pendingStyle)}
}

// Clone returns a deep copy, used by the document's transaction guard to
// set aside the pre-transaction state before the first mutation in a scope.
func (s *TextState) Clone() *TextState {
	styles := make(map[string][]styleSpan, len(s.styles))
	for k, spans := range s.styles {
		styles[k] = append([]styleSpan(nil), spans...)
	}
	opens := make(map[string][]pendingStyle, len(s.opens))
	for k, stack := range s.opens {
		opens[k] = append([]pendingStyle(nil), stack...)
	}
	return &TextState{tracker: s.tracker.Clone(), buf: append([]rune(nil), s.buf...), styles: styles, opens: opens}
}

// OriginAt returns the origin-left id a local insert at pos should carry.
func (s *TextState) OriginAt(pos int32) id.ID { return s.tracker.OriginsAt(pos) }

// OriginRightAt returns the origin-right id a local insert at pos should
// carry.
func (s *TextState) OriginRightAt(pos int32) id.ID { return s.tracker.OriginRightAt(pos) }

// IDAt returns the id of the rune currently visible at pos, used to build
// the delete op's target chain.
func (s *TextState) IDAt(pos int32) id.ID { return s.tracker.AtomIDAt(pos) }

// IDs returns the id_full of every currently-visible rune, in buffer
// order — paired one-to-one with ToValue()'s runes by the columnar
// container snapshot codec (§6).
func (s *TextState) IDs() []id.IDFull { return s.tracker.VisibleIDs() }

// ApplyInsert integrates one already-ordered text atom and replays it into
// the rune buffer.
func (s *TextState) ApplyInsert(atomID id.ID, lamport id.Lamport, originLeft, originRight id.ID, r rune) Diff {
	e := s.tracker.Insert(atomID, lamport, originLeft, originRight, r)
	return s.applyEffects([]fugue.Effect{e})
}

// ApplyDelete marks the rune at targetID deleted on behalf of delOpID.
func (s *TextState) ApplyDelete(delOpID, targetID id.ID) Diff {
	e := s.tracker.Delete(delOpID, targetID)
	return s.applyEffects([]fugue.Effect{e})
}

func (s *TextState) Retreat(spans []id.IDSpan) Diff { return s.applyEffects(s.tracker.Retreat(spans)) }
func (s *TextState) Forward(spans []id.IDSpan) Diff { return s.applyEffects(s.tracker.Forward(spans)) }

func (s *TextState) applyEffects(effects []fugue.Effect) Diff {
	var out Diff
	for _, e := range effects {
		switch e.Kind {
		case fugue.EffectIns:
			rs := make([]rune, len(e.Payload))
			for i, p := range e.Payload {
				rs[i] = p.(rune)
			}
			s.buf = append(s.buf, rs...)
			copy(s.buf[e.Pos+int32(len(rs)):], s.buf[e.Pos:])
			copy(s.buf[e.Pos:], rs)
			s.shiftStyles(e.Pos, int32(len(rs)))
			items := make([]value.Value, len(rs))
			for i, r := range rs {
				items[i] = value.String(string(r))
			}
			out = append(out, Edit{Kind: EditInsert, Pos: e.Pos, Items: items})
		case fugue.EffectDel:
			if e.Len == 0 {
				continue
			}
			s.buf = append(s.buf[:e.Pos], s.buf[e.Pos+e.Len:]...)
			s.shiftStyles(e.Pos+e.Len, -e.Len)
			out = append(out, Edit{Kind: EditDelete, Pos: e.Pos, Len: e.Len})
		}
	}
	return out
}

func (s *TextState) shiftStyles(fromPos, delta int32) {
	for key, spans := range s.styles {
		for i := range spans {
			if spans[i].from >= fromPos {
				spans[i].from += delta
			}
			if spans[i].to >= fromPos {
				spans[i].to += delta
			}
			if spans[i].from < 0 {
				spans[i].from = 0
			}
			if spans[i].to < spans[i].from {
				spans[i].to = spans[i].from
			}
		}
		s.styles[key] = spans
	}
}

// Mark records a style range [from, to) for key with val, authored at
// author. Overlapping ranges for the same key all remain stored; StyleAt
// resolves the winner per-point by highest (lamport, peer).
func (s *TextState) Mark(from, to int32, key string, val value.Value, author id.IDFull) Diff {
	s.styles[key] = append(s.styles[key], styleSpan{from: from, to: to, key: key, val: val, author: author})
	return Diff{{Kind: EditSet, Pos: from, Len: to - from, Key: key, Value: val}}
}

// OpenStyle records a StyleStart marker at pos, pending the matching
// CloseStyle — the bookend mechanism driving both local Mark calls and
// remote StyleStart/StyleEnd op replay (see internal/opcontent.StyleStart).
func (s *TextState) OpenStyle(pos int32, key string, val value.Value, author id.IDFull) {
	s.opens[key] = append(s.opens[key], pendingStyle{pos: pos, val: val, author: author})
}

// CloseStyle matches the innermost pending OpenStyle for key and commits
// the resulting [open.pos, pos) range via Mark; a no-op if key has no
// pending open (a malformed or already-closed stream).
func (s *TextState) CloseStyle(pos int32, key string) Diff {
	stack := s.opens[key]
	if len(stack) == 0 {
		return nil
	}
	open := stack[len(stack)-1]
	s.opens[key] = stack[:len(stack)-1]
	return s.Mark(open.pos, pos, key, open.val, open.author)
}

// StyleAt returns the winning style value for key at pos, false if no span
// covers it.
func (s *TextState) StyleAt(pos int32, key string) (value.Value, bool) {
	var winner *styleSpan
	for i, sp := range s.styles[key] {
		if pos < sp.from || pos >= sp.to {
			continue
		}
		if winner == nil || winner.author.Less(sp.author) {
			winner = &s.styles[key][i]
		}
	}
	if winner == nil {
		return value.Value{}, false
	}
	return winner.val, true
}

// Len returns the current visible rune length.
func (s *TextState) Len() int32 { return int32(len(s.buf)) }

// ToValue materializes the text's current content as a string.
func (s *TextState) ToValue() value.Value { return value.String(string(s.buf)) }
