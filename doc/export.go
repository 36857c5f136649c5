package doc

import (
	"sort"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/oplog"
	"github.com/Polqt/crdtcollab/internal/wire"
)

// Export returns every change (or change tail) not yet reflected in since,
// wire-encoded with a container table (§6) so the receiving replica's own
// compact container indices don't need to match this one's.
func (d *Document) Export(since id.VV) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	peers := d.ops.Peers()
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	var changes []*oplog.Change
	for _, p := range peers {
		seen := since.Get(p)
		for _, ch := range d.ops.Changes(p) {
			if ch.End() <= seen {
				continue
			}
			if ch.Counter >= seen {
				changes = append(changes, ch)
				continue
			}
			// seen falls inside this change: only the unseen tail travels,
			// re-anchored to depend on the last atom the receiver already
			// has from this same peer (the only dep an interior atom in an
			// RLE run ever has — see oplog.OpLog.nextLamport).
			changes = append(changes, &oplog.Change{
				Peer:      p,
				Counter:   seen,
				Lamport:   ch.LamportAt(seen),
				Timestamp: ch.Timestamp,
				Deps:      id.Frontier{{Peer: p, Counter: seen - 1}},
				Ops:       ch.SliceFrom(seen),
			})
		}
	}
	return wire.EncodeChangesWithContainers(changes, d.idxContainer)
}

// Snapshot exports the document's complete history, equivalent to
// Export(id.NewVV()) — the receiving side rebuilds every container by full
// replay rather than by reading materialized state directly. Use
// ContainerSnapshot for the latter: a single container's current value in
// the narrower columnar form (§6), without the rest of the document's
// history attached.
func (d *Document) Snapshot() []byte {
	return d.Export(id.NewVV())
}

// ContainerSnapshot encodes cID's current materialized state in the
// columnar per-container form (§6): a kind byte, its live elements'
// values, and a peer-table/delta-RLE id column — not the full change
// history Export/Snapshot carry. Suited to a cheap resync baseline or a
// read-only render of one container; DecodeContainerSnapshot documents why
// the result should not then receive concurrent remote ops predating it.
func (d *Document) ContainerSnapshot(cID cid.ContainerID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.registry.Get(cID)
	if !ok {
		return nil, crdterr.New(crdterr.Usage, "container snapshot: %s not found", cID)
	}
	return wire.EncodeContainerSnapshot(c)
}

// Import integrates a remote export (full snapshot or incremental),
// remapping each change's ops from the export's container table into this
// document's own local compact indices before handing them to the OpLog.
func (d *Document) Import(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	containers, changes, err := wire.DecodeChangesWithContainers(data)
	if err != nil {
		return err
	}

	before := d.ops.Frontier()
	for _, ch := range changes {
		remapped := make([]oplog.Op, len(ch.Ops))
		for i, op := range ch.Ops {
			localIdx := d.ensureContainerIdx(containers[op.ContainerIdx])
			remapped[i] = oplog.Op{Counter: op.Counter, ContainerIdx: localIdx, Content: op.Content}
		}
		ch.Ops = remapped
		if _, err := d.ops.IntegrateRemote(ch, true); err != nil {
			return err
		}
	}
	after := d.ops.Frontier()
	d.materializeRange(before, after)
	return nil
}

// FromSnapshot builds a fresh Document and imports data into it —
// equivalent to New(opts) followed by Import(data), since the snapshot
// format already replays full history rather than a separate binary
// container-state encoding.
func FromSnapshot(data []byte, opts Options) (*Document, error) {
	d := New(opts)
	if err := d.Import(data); err != nil {
		return nil, err
	}
	return d, nil
}
