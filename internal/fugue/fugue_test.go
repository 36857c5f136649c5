package fugue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcollab/internal/id"
)

// materialize replays effects into a []rune buffer for assertions.
func materialize(effects ...[]Effect) []rune {
	var buf []rune
	for _, es := range effects {
		for _, e := range es {
			switch e.Kind {
			case EffectIns:
				ins := make([]rune, len(e.Payload))
				for i, p := range e.Payload {
					ins[i] = p.(rune)
				}
				buf = append(buf[:e.Pos], append(append([]rune(nil), ins...), buf[e.Pos:]...)...)
			case EffectDel:
				buf = append(buf[:e.Pos], buf[e.Pos+e.Len:]...)
			}
		}
	}
	return buf
}

func insertString(tr *Tracker, peer id.PeerID, startCounter int32, lamport id.Lamport, s string) []Effect {
	var effects []Effect
	origin := id.ID{}
	for i, r := range []rune(s) {
		aid := id.ID{Peer: peer, Counter: startCounter + int32(i)}
		e := tr.Insert(aid, lamport+id.Lamport(i), origin, id.ID{}, r)
		effects = append(effects, e)
		origin = aid
	}
	return effects
}

// insertBackward simulates typing s backward, one rune per op, each new
// rune prepended immediately before the previous one (origin-right
// anchored, origin-left always the document start) — the same op shape a
// concurrent "cursor at position 0, keep pressing Home then type" editing
// pattern produces.
func insertBackward(tr *Tracker, peer id.PeerID, startCounter int32, lamport id.Lamport, s string) []Effect {
	var effects []Effect
	runes := []rune(s)
	right := id.ID{}
	for i := len(runes) - 1; i >= 0; i-- {
		aid := id.ID{Peer: peer, Counter: startCounter + int32(i)}
		e := tr.Insert(aid, lamport+id.Lamport(i), id.ID{}, right, runes[i])
		effects = append(effects, e)
		right = aid
	}
	return effects
}

func TestConcurrentTypingNonInterleaved_HigherLamportFirst(t *testing.T) {
	tr := New()
	// A types "abc" at lamport 5 (peer 1); B types "abc" at lamport 2 (peer 2),
	// both anchored at the document start concurrently.
	effA := insertString(tr, 1, 0, 5, "abc")
	effB := insertString(tr, 2, 0, 2, "abc")

	got := materialize(effA, effB)
	assert.Equal(t, "abcabc", string(got), "A's higher-lamport run must sort first, non-interleaved")
}

func TestConcurrentTypingTieBrokenByPeerAscending(t *testing.T) {
	tr := New()
	effA := insertString(tr, 5, 0, 3, "abc") // peer 5
	effB := insertString(tr, 2, 0, 3, "xyz") // peer 2, same lamport

	got := materialize(effA, effB)
	assert.Equal(t, "xyzabc", string(got), "on lamport tie, ascending peer sorts first")
}

func TestDeleteThenRetreatForwardIsIdentity(t *testing.T) {
	tr := New()
	insEffects := insertString(tr, 1, 0, 0, "hello")
	delID := id.ID{Peer: 2, Counter: 0}
	target := id.ID{Peer: 1, Counter: 4} // the 'o'
	delEffect := tr.Delete(delID, target)

	before := materialize(insEffects, []Effect{delEffect})
	require.Equal(t, "hell", string(before))

	retreated := tr.Retreat([]id.IDSpan{{Peer: 2, Start: 0, Len: 1}})
	// Retreating the delete re-reveals the 'o' at its original position.
	assert.Equal(t, "hello", string(materialize(insEffects, []Effect{delEffect}, retreated)))

	forwarded := tr.Forward([]id.IDSpan{{Peer: 2, Start: 0, Len: 1}})
	assert.Len(t, forwarded, 1)
	assert.Equal(t, EffectDel, forwarded[0].Kind)
	assert.Equal(t, "hell", string(materialize(insEffects, []Effect{delEffect}, retreated, forwarded)))
}

func TestOriginsAtTracksVisiblePositions(t *testing.T) {
	tr := New()
	insertString(tr, 1, 0, 0, "ac")
	left := tr.OriginsAt(1)
	assert.Equal(t, id.ID{Peer: 1, Counter: 0}, left)
	right := tr.OriginRightAt(1)
	assert.Equal(t, id.ID{Peer: 1, Counter: 1}, right)

	// Insert 'b' between 'a' and 'c'.
	e := tr.Insert(id.ID{Peer: 2, Counter: 0}, 1, left, right, rune('b'))
	assert.Equal(t, int32(1), e.Pos)
}

func TestConcurrentBackwardTypingDoesNotInterleave(t *testing.T) {
	tr := New()
	// Two peers concurrently type "abc" and "xyz" backward (c,b,a and
	// z,y,x in authoring order), both runs anchored at the document start
	// on the left and chaining origin-right back toward their own
	// previously-typed rune. Every atom in both runs shares the same
	// origin-left (document start), so only origin-right keeps the runs
	// from being resolved as direct siblings of every other atom and
	// interleaving character by character.
	effA := insertBackward(tr, 1, 0, 5, "abc")
	effB := insertBackward(tr, 2, 0, 2, "xyz")

	got := materialize(effA, effB)
	assert.Equal(t, "abcxyz", string(got), "each backward-typed run must stay contiguous, ordered by its highest lamport")
}
