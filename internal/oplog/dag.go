package oplog

import (
	"sort"

	"github.com/Polqt/crdtcollab/internal/id"
)

// VVOfFrontier computes the version vector denoted by an arbitrary
// frontier (every id in f must already be integrated).
func (l *OpLog) VVOfFrontier(f id.Frontier) id.VV {
	vv := id.NewVV()
	for _, i := range f {
		vv.MergeInto(l.GetVV(i))
	}
	return vv
}

// MinimizeFrontier drops any id in candidates that is causally dominated
// by another id in the set, leaving the minimal antichain.
func (l *OpLog) MinimizeFrontier(candidates id.Frontier) id.Frontier {
	out := make(id.Frontier, 0, len(candidates))
	for idx, x := range candidates {
		dominated := false
		for j, y := range candidates {
			if idx == j {
				continue
			}
			if l.isAncestor(x, y) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, x)
		}
	}
	return out
}

// isAncestor reports whether x is in y's causal past (x != y).
func (l *OpLog) isAncestor(x, y id.ID) bool {
	if x == y {
		return false
	}
	if x.Peer == y.Peer {
		return x.Counter < y.Counter
	}
	return l.GetVV(y).Includes(x)
}

// FindCommonAncestor returns the lowest common antichain of a and b: the
// greatest frontier that is a causal ancestor of both.
func (l *OpLog) FindCommonAncestor(a, b id.Frontier) id.Frontier {
	vvA, vvB := l.VVOfFrontier(a), l.VVOfFrontier(b)
	min := id.NewVV()
	peers := make(map[id.PeerID]struct{})
	for p := range vvA {
		peers[p] = struct{}{}
	}
	for p := range vvB {
		peers[p] = struct{}{}
	}
	for p := range peers {
		ea, eb := vvA[p], vvB[p]
		if ea < eb {
			min[p] = ea
		} else {
			min[p] = eb
		}
	}
	candidate := id.FrontierFromVV(min)
	return l.MinimizeFrontier(candidate)
}

// FindPath computes the retreat/forward id-spans needed to move a VV from
// `from` to `to`.
func (l *OpLog) FindPath(from, to id.Frontier) (retreat, forward []id.IDSpan) {
	return l.VVOfFrontier(from).Diff(l.VVOfFrontier(to))
}

// CausalOp is one op yielded by IterCausal, annotated with its full id and
// Lamport so consumers (the Fugue tracker, the exporter) can order and
// re-anchor it without a second OpLog lookup.
type CausalOp struct {
	ID      id.ID
	Lamport id.Lamport
	Op      Op
}

// IterCausal yields every op in the forward spans between `from` and `to`,
// ordered by (Lamport, Peer) — an arbitrary but deterministic linearization
// consistent with causal order (an op's Lamport is always greater than any
// of its dependencies', so this ordering never presents an op before its
// deps).
func (l *OpLog) IterCausal(from, to id.Frontier) []CausalOp {
	_, forward := l.FindPath(from, to)
	var out []CausalOp
	for _, span := range forward {
		for _, op := range l.opsInSpan(span) {
			out = append(out, CausalOp{ID: id.ID{Peer: span.Peer, Counter: op.Counter}, Lamport: l.GetLamport(id.ID{Peer: span.Peer, Counter: op.Counter}), Op: op})
		}
	}
	sortCausalOps(out)
	return out
}

// opsInSpan slices every change overlapping span into atom-aligned Ops.
func (l *OpLog) opsInSpan(span id.IDSpan) []Op {
	var out []Op
	for _, ch := range l.peerLog[span.Peer] {
		lo, hi := max32(span.Start, ch.Counter), min32(span.End(), ch.End())
		if lo >= hi {
			continue
		}
		out = append(out, ch.opSliceAt(lo, hi)...)
	}
	return out
}

func sortCausalOps(ops []CausalOp) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Lamport != ops[j].Lamport {
			return ops[i].Lamport < ops[j].Lamport
		}
		return ops[i].ID.Peer < ops[j].ID.Peer
	})
}
