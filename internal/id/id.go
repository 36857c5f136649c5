// Package id implements identity and time: atomic operation IDs, Lamport
// clocks, version vectors (mutable and persistent), and frontiers.
//
// Grounded on the teacher's crdt.VClock (github.com/Polqt/crdtcollab/crdt),
// generalized from a string-keyed logical clock into the peer/counter ID
// algebra the sequence tracker and OpLog need.
package id

import "fmt"

// PeerID identifies a replica. Assigned once per document, stable for its
// lifetime.
type PeerID uint64

// Lamport is a logical clock: max(deps)+1 on authoring.
type Lamport uint32

// ID names one atomic operation: the counter-th op authored by Peer.
type ID struct {
	Peer    PeerID
	Counter int32
}

// String renders an ID as "peer@counter" for logs and error messages.
func (i ID) String() string { return fmt.Sprintf("%d@%d", i.Peer, i.Counter) }

// Valid reports whether this is a real ID (vs. the zero value used as a
// sentinel for "no origin"/"start of document").
func (i ID) Valid() bool { return i != (ID{}) }

// IDSpan is a contiguous run of counters by one peer: [Start, Start+Len).
type IDSpan struct {
	Peer  PeerID
	Start int32
	Len   int32
}

// End returns the exclusive end counter.
func (s IDSpan) End() int32 { return s.Start + s.Len }

// Contains reports whether id falls inside the span.
func (s IDSpan) Contains(i ID) bool {
	return i.Peer == s.Peer && i.Counter >= s.Start && i.Counter < s.End()
}

// IDFull pairs an ID with the Lamport timestamp it was authored at — the
// sort key the Fugue tree and the movable-list/map conflict rules use.
type IDFull struct {
	ID      ID
	Lamport Lamport
}

// Less implements the engine-wide conflict tie-break: higher (lamport,
// peer) wins, so Less orders losers before winners.
func (a IDFull) Less(b IDFull) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport < b.Lamport
	}
	return a.ID.Peer < b.ID.Peer
}
