package id

import "sort"

// VV is a mutable version vector: peer -> exclusive-end counter. It is the
// document's running tally of "ops applied so far", used for frontier math
// during append/integrate/checkout.
//
// Adapted from the teacher's crdt.VClock: same map[peer]counter shape and
// Merge/HappensBefore contract, generalized from string node ids to PeerID
// and from "logical clock tick" to "exclusive-end op counter".
type VV map[PeerID]int32

// NewVV returns an empty version vector.
func NewVV() VV { return make(VV) }

// Get returns the exclusive-end counter for peer, 0 if unseen.
func (v VV) Get(p PeerID) int32 { return v[p] }

// Includes reports whether id has already been applied according to v.
func (v VV) Includes(i ID) bool { return i.Counter < v[i.Peer] }

// SetIfGreater bumps the entry for p to end if end is larger.
func (v VV) SetIfGreater(p PeerID, end int32) {
	if end > v[p] {
		v[p] = end
	}
}

// Clone returns a deep copy.
func (v VV) Clone() VV {
	c := make(VV, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// Merge returns the component-wise maximum of v and other (does not mutate
// either).
func (v VV) Merge(other VV) VV {
	out := v.Clone()
	for p, end := range other {
		out.SetIfGreater(p, end)
	}
	return out
}

// MergeInto mutates v to be the component-wise maximum of v and other.
func (v VV) MergeInto(other VV) {
	for p, end := range other {
		v.SetIfGreater(p, end)
	}
}

// LessEq reports whether v <= other component-wise (v's applied-op set is a
// subset of other's).
func (v VV) LessEq(other VV) bool {
	for p, end := range v {
		if end > other[p] {
			return false
		}
	}
	return true
}

// HappensBefore reports whether v causally precedes other: v <= other and
// v != other.
func (v VV) HappensBefore(other VV) bool {
	return v.LessEq(other) && !v.Equal(other)
}

// Concurrent reports whether neither v nor other causally precedes the
// other.
func (v VV) Concurrent(other VV) bool {
	return !v.LessEq(other) && !other.LessEq(v)
}

// Equal reports whether v and other have identical non-zero entries.
func (v VV) Equal(other VV) bool {
	for p, end := range v {
		if end != 0 && other[p] != end {
			return false
		}
	}
	for p, end := range other {
		if end != 0 && v[p] != end {
			return false
		}
	}
	return true
}

// Diff computes the id-spans that must be retreated (present in v but not
// in other) and forwarded (present in other but not in v) to move a tracker
// from v to other. Both returned slices are sorted by peer for determinism.
func (v VV) Diff(other VV) (retreat, forward []IDSpan) {
	peers := make(map[PeerID]struct{}, len(v)+len(other))
	for p := range v {
		peers[p] = struct{}{}
	}
	for p := range other {
		peers[p] = struct{}{}
	}
	for p := range peers {
		a, b := v[p], other[p]
		if a > b {
			retreat = append(retreat, IDSpan{Peer: p, Start: b, Len: a - b})
		} else if b > a {
			forward = append(forward, IDSpan{Peer: p, Start: a, Len: b - a})
		}
	}
	sortSpans(retreat)
	sortSpans(forward)
	return retreat, forward
}

func sortSpans(s []IDSpan) {
	sort.Slice(s, func(i, j int) bool { return s[i].Peer < s[j].Peer })
}
