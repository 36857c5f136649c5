package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

func insertRunes(s *TextState, peer id.PeerID, lamport id.Lamport, str string) {
	origin := id.ID{}
	for i, r := range []rune(str) {
		aid := id.ID{Peer: peer, Counter: int32(i)}
		s.ApplyInsert(aid, lamport+id.Lamport(i), origin, id.ID{}, r)
		origin = aid
	}
}

func TestTextInsertAndDelete(t *testing.T) {
	s := NewTextState()
	insertRunes(s, 1, 0, "hello")
	assert.Equal(t, "hello", s.ToValue().AsString())

	s.ApplyDelete(id.ID{Peer: 2, Counter: 0}, id.ID{Peer: 1, Counter: 4})
	assert.Equal(t, "hell", s.ToValue().AsString())
}

func TestTextMarkResolvesHighestAuthorAtPoint(t *testing.T) {
	s := NewTextState()
	insertRunes(s, 1, 0, "hello world")

	s.Mark(0, 5, "bold", value.Bool(true), full(1, 0, 1))
	// A later, higher-priority mark narrows the bold range.
	s.Mark(0, 3, "bold", value.Bool(false), full(2, 0, 5))

	v, ok := s.StyleAt(1, "bold")
	require.True(t, ok)
	assert.False(t, v.AsBool(), "higher (lamport,peer) mark wins inside the overlap")

	v, ok = s.StyleAt(4, "bold")
	require.True(t, ok)
	assert.True(t, v.AsBool(), "outside the overlap the original mark still applies")
}

func TestTextStylesShiftWithEdits(t *testing.T) {
	s := NewTextState()
	insertRunes(s, 1, 0, "hello")
	s.Mark(2, 4, "italic", value.Bool(true), full(1, 0, 1))

	// Insert two runes before the range; it should shift right.
	firstRune := id.ID{Peer: 1, Counter: 0}
	s.ApplyInsert(id.ID{Peer: 2, Counter: 0}, 10, id.ID{}, firstRune, 'x')
	s.ApplyInsert(id.ID{Peer: 2, Counter: 1}, 11, id.ID{Peer: 2, Counter: 0}, firstRune, 'y')

	_, ok := s.StyleAt(2, "italic")
	assert.False(t, ok, "range shifted away from its old start")
	v, ok := s.StyleAt(4, "italic")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}
