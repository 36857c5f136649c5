// Package oplog implements the causal history store: per-peer append-only
// change blocks (§4.1) and the DAG queries layered over them (find common
// ancestor, find path, causal iteration).
package oplog

import (
	"time"

	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
)

// Op is one atomic operation: a counter within its author's stream, the
// container it targets, and its type-specific content.
type Op struct {
	Counter      int32
	ContainerIdx int32
	Content      opcontent.Content
}

// AtomLen delegates to the content's atom weight.
func (o Op) AtomLen() int32 { return o.Content.AtomLen() }

// ID reconstructs the op's full id given its author.
func (o Op) ID(peer id.PeerID) id.ID { return id.ID{Peer: peer, Counter: o.Counter} }

// Change is a contiguous RLE run of ops authored by one peer, sharing a
// Lamport start, timestamp, and causal deps (at most one predecessor per
// peer).
type Change struct {
	Peer      id.PeerID
	Counter   int32 // first op's counter
	Lamport   id.Lamport
	Timestamp int64
	Deps      id.Frontier
	Ops       []Op

	// vvAfter is the version vector immediately after this change is fully
	// applied, cached so DAG queries don't need to replay the whole log.
	// It is a PersistentVV so storing one per change is O(1) in space
	// beyond the changed entry (structural sharing, see internal/id).
	vvAfter id.PersistentVV
}

// CounterLen is the number of counters this change spans (sum of its ops'
// atom lengths).
func (c *Change) CounterLen() int32 {
	var n int32
	for _, op := range c.Ops {
		n += op.AtomLen()
	}
	return n
}

// End is the exclusive end counter of this change.
func (c *Change) End() int32 { return c.Counter + c.CounterLen() }

// FirstID is this change's first op's id.
func (c *Change) FirstID() id.ID { return id.ID{Peer: c.Peer, Counter: c.Counter} }

// LamportAt returns the Lamport timestamp of the op at counter within this
// change (Lamport increases by 1 per atom, mirroring counter).
func (c *Change) LamportAt(counter int32) id.Lamport {
	if counter < c.Counter || counter >= c.End() {
		crdterr.Fatalf("oplog: counter %d out of range for change %v", counter, c.FirstID())
	}
	return c.Lamport + id.Lamport(counter-c.Counter)
}

// containsCounter reports whether counter falls within [c.Counter, c.End()).
func (c *Change) containsCounter(counter int32) bool {
	return counter >= c.Counter && counter < c.End()
}

// SliceFrom returns the ops covering [from, c.End()), for exporting only the
// unseen tail of a change the receiver already has a prefix of.
func (c *Change) SliceFrom(from int32) []Op { return c.opSliceAt(from, c.End()) }

// opSliceAt returns the Op (possibly itself the result of slicing a stored
// merged op) covering [from, to) within this change's counter range.
func (c *Change) opSliceAt(from, to int32) []Op {
	var out []Op
	cursor := c.Counter
	for _, op := range c.Ops {
		opStart := cursor
		opEnd := cursor + op.AtomLen()
		cursor = opEnd
		lo, hi := max32(from, opStart), min32(to, opEnd)
		if lo >= hi {
			continue
		}
		if lo == opStart && hi == opEnd {
			out = append(out, op)
			continue
		}
		out = append(out, Op{Counter: op.Counter + (lo - opStart), ContainerIdx: op.ContainerIdx, Content: op.Content.Slice(lo-opStart, hi-opStart)})
	}
	return out
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// NowUnix is split out so tests and deterministic replays can stub it.
var NowUnix = func() int64 { return time.Now().Unix() }
