package wire

import (
	"bytes"

	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/oplog"
)

// EncodeOpLog writes every change in l, across every peer, as the
// columnar history block described in §6: a peer-ID table, then one
// {peer_index, counter, lamport-counter} triple per change with
// delta-RLE over the counter (each change's counter is written relative
// to the previous change's end for the same peer, which collapses to 0
// for the common case of strictly sequential per-peer history), followed
// by the change's deps and op run.
func EncodeOpLog(l *oplog.OpLog) []byte {
	var buf bytes.Buffer
	peers := l.Peers()
	writeVarint(&buf, uint64(len(peers)))
	peerIndex := make(map[id.PeerID]int, len(peers))
	for i, p := range peers {
		peerIndex[p] = i
		writeVarint(&buf, uint64(p))
	}

	var totalChanges int
	for _, p := range peers {
		totalChanges += len(l.Changes(p))
	}
	writeVarint(&buf, uint64(totalChanges))

	prevEnd := make(map[id.PeerID]int32, len(peers))
	for _, p := range peers {
		for _, ch := range l.Changes(p) {
			writeVarint(&buf, uint64(peerIndex[p]))
			writeVarint(&buf, zigzag(int64(ch.Counter-prevEnd[p])))
			writeVarint(&buf, zigzag(int64(ch.Lamport)-int64(ch.Counter)))
			buf.WriteByte(0) // version byte for Timestamp presence; always present here
			writeVarint(&buf, zigzag(ch.Timestamp))

			writeVarint(&buf, uint64(len(ch.Deps)))
			for _, dep := range ch.Deps {
				writeID(&buf, dep)
			}

			writeVarint(&buf, uint64(len(ch.Ops)))
			for _, op := range ch.Ops {
				EncodeOp(&buf, op)
			}
			prevEnd[p] = ch.End()
		}
	}
	return buf.Bytes()
}

// EncodeChanges writes an arbitrary list of changes (e.g. the unseen tail
// computed by Document.Export) in the same columnar form as EncodeOpLog,
// deriving its own peer table from the changes given rather than a whole
// OpLog's.
func EncodeChanges(changes []*oplog.Change) []byte {
	var buf bytes.Buffer
	peerIndex := make(map[id.PeerID]int)
	var peers []id.PeerID
	for _, ch := range changes {
		if _, ok := peerIndex[ch.Peer]; !ok {
			peerIndex[ch.Peer] = len(peers)
			peers = append(peers, ch.Peer)
		}
	}
	writeVarint(&buf, uint64(len(peers)))
	for _, p := range peers {
		writeVarint(&buf, uint64(p))
	}

	writeVarint(&buf, uint64(len(changes)))
	prevEnd := make(map[id.PeerID]int32, len(peers))
	for _, ch := range changes {
		writeVarint(&buf, uint64(peerIndex[ch.Peer]))
		writeVarint(&buf, zigzag(int64(ch.Counter-prevEnd[ch.Peer])))
		writeVarint(&buf, zigzag(int64(ch.Lamport)-int64(ch.Counter)))
		buf.WriteByte(0)
		writeVarint(&buf, zigzag(ch.Timestamp))

		writeVarint(&buf, uint64(len(ch.Deps)))
		for _, dep := range ch.Deps {
			writeID(&buf, dep)
		}

		writeVarint(&buf, uint64(len(ch.Ops)))
		for _, op := range ch.Ops {
			EncodeOp(&buf, op)
		}
		prevEnd[ch.Peer] = ch.End()
	}
	return buf.Bytes()
}

// DecodeChanges parses the form written by EncodeChanges back into change
// values, in stored order, without touching any OpLog — the caller
// integrates each one (e.g. via OpLog.IntegrateRemote).
func DecodeChanges(data []byte) ([]*oplog.Change, error) {
	r := bytes.NewReader(data)
	peerCount, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	peers := make([]id.PeerID, peerCount)
	for i := range peers {
		p, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		peers[i] = id.PeerID(p)
	}

	changeCount, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	prevEnd := make(map[id.PeerID]int32, len(peers))
	out := make([]*oplog.Change, 0, changeCount)
	for n := uint64(0); n < changeCount; n++ {
		pidx, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		if pidx >= uint64(len(peers)) {
			return nil, crdterr.New(crdterr.Decode, "changes: peer index %d out of range", pidx)
		}
		peer := peers[pidx]

		deltaCounter, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		counter := prevEnd[peer] + int32(unzigzag(deltaCounter))

		lamMinusCounter, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		lamport := id.Lamport(int64(counter) + unzigzag(lamMinusCounter))

		if _, err := r.ReadByte(); err != nil {
			return nil, crdterr.Wrap(crdterr.Decode, err, "read timestamp version byte")
		}
		tsZig, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		timestamp := unzigzag(tsZig)

		depCount, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		deps := make(id.Frontier, depCount)
		for i := range deps {
			deps[i], err = readID(r)
			if err != nil {
				return nil, err
			}
		}

		opCount, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		ops := make([]oplog.Op, opCount)
		cursor := counter
		for i := range ops {
			op, err := DecodeOp(r, cursor)
			if err != nil {
				return nil, err
			}
			ops[i] = op
			cursor += op.AtomLen()
		}

		ch := &oplog.Change{Peer: peer, Counter: counter, Lamport: lamport, Timestamp: timestamp, Deps: deps, Ops: ops}
		out = append(out, ch)
		prevEnd[peer] = ch.End()
	}
	return out, nil
}

// DecodeOpLog parses the columnar form written by EncodeOpLog and
// integrates every change into l in the stored peer/counter order. A
// peer's own changes are stored in counter order, but peers come in
// OpLog.Peers order, so a change can arrive before a cross-peer dep;
// IntegrateRemote defers such a change (within the deferred buffer's
// bound) and integrates it once the dep lands.
func DecodeOpLog(data []byte, l *oplog.OpLog) error {
	r := bytes.NewReader(data)
	peerCount, err := readVarint(r)
	if err != nil {
		return err
	}
	peers := make([]id.PeerID, peerCount)
	for i := range peers {
		p, err := readVarint(r)
		if err != nil {
			return err
		}
		peers[i] = id.PeerID(p)
	}

	changeCount, err := readVarint(r)
	if err != nil {
		return err
	}
	prevEnd := make(map[id.PeerID]int32, len(peers))
	for n := uint64(0); n < changeCount; n++ {
		pidx, err := readVarint(r)
		if err != nil {
			return err
		}
		if pidx >= uint64(len(peers)) {
			return crdterr.New(crdterr.Decode, "snapshot: peer index %d out of range", pidx)
		}
		peer := peers[pidx]

		deltaCounter, err := readVarint(r)
		if err != nil {
			return err
		}
		counter := prevEnd[peer] + int32(unzigzag(deltaCounter))

		lamMinusCounter, err := readVarint(r)
		if err != nil {
			return err
		}
		lamport := id.Lamport(int64(counter) + unzigzag(lamMinusCounter))

		if _, err := r.ReadByte(); err != nil {
			return crdterr.Wrap(crdterr.Decode, err, "read timestamp version byte")
		}
		tsZig, err := readVarint(r)
		if err != nil {
			return err
		}
		timestamp := unzigzag(tsZig)

		depCount, err := readVarint(r)
		if err != nil {
			return err
		}
		deps := make(id.Frontier, depCount)
		for i := range deps {
			deps[i], err = readID(r)
			if err != nil {
				return err
			}
		}

		opCount, err := readVarint(r)
		if err != nil {
			return err
		}
		ops := make([]oplog.Op, opCount)
		cursor := counter
		for i := range ops {
			op, err := DecodeOp(r, cursor)
			if err != nil {
				return err
			}
			ops[i] = op
			cursor += op.AtomLen()
		}

		ch := &oplog.Change{Peer: peer, Counter: counter, Lamport: lamport, Timestamp: timestamp, Deps: deps, Ops: ops}
		if _, err := l.IntegrateRemote(ch, true); err != nil {
			return err
		}
		prevEnd[peer] = ch.End()
	}
	return nil
}
