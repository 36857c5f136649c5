package id

import "sort"

// Frontier is the minimal antichain of IDs whose VV equals a document
// state. Small by construction (one entry per concurrently-active peer at
// the tips of the DAG), so it is kept inline as a slice rather than a set
// type.
type Frontier []ID

// Clone returns a copy of f.
func (f Frontier) Clone() Frontier {
	out := make(Frontier, len(f))
	copy(out, f)
	return out
}

// Equal reports set-equality between two frontiers.
func (f Frontier) Equal(other Frontier) bool {
	if len(f) != len(other) {
		return false
	}
	a, b := f.sorted(), other.sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f Frontier) sorted() Frontier {
	out := f.Clone()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].Counter < out[j].Counter
	})
	return out
}

// ToVV expands a frontier into the version vector it denotes: each ID
// contributes an exclusive end of Counter+1 for its peer. Valid only when
// the frontier's peers are otherwise disjoint, which append/integrate
// always maintain (at most one tip per peer).
func (f Frontier) ToVV() VV {
	vv := NewVV()
	for _, i := range f {
		vv.SetIfGreater(i.Peer, i.Counter+1)
	}
	return vv
}

// FrontierFromVV is not generally recoverable from a VV alone (the DAG must
// resolve which per-peer tips are still "live" tips of the antichain). This
// helper returns every per-peer tip and does not drop tips that are
// ancestors of others; it covers the common single-peer-dominant case used
// by tests and by fresh documents.
func FrontierFromVV(vv VV) Frontier {
	f := make(Frontier, 0, len(vv))
	for p, end := range vv {
		if end > 0 {
			f = append(f, ID{Peer: p, Counter: end - 1})
		}
	}
	return f.sorted()
}
