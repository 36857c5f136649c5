package wire

import (
	"bytes"
	"io"

	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/opcontent"
	"github.com/Polqt/crdtcollab/internal/oplog"
	"github.com/Polqt/crdtcollab/internal/value"
)

// op content discriminants on the wire; independent of opcontent.Kind's
// Go-side iota so the wire format doesn't silently shift if the Go enum
// is reordered.
const (
	wTextIns byte = iota
	wTextDel
	wListIns
	wListDel
	wMove
	wSet
	wStyleStart
	wStyleEnd
	wMapDel
)

// EncodeOp appends op's binary form to buf: container index, then a
// content discriminant, then content fields in the spec's stable order
// (slice-then-position for inserts, position-then-signed-length for
// deletes).
func EncodeOp(buf *bytes.Buffer, op oplog.Op) {
	writeVarint(buf, uint64(op.ContainerIdx))
	switch c := op.Content.(type) {
	case opcontent.TextIns:
		buf.WriteByte(wTextIns)
		writeVarint(buf, uint64(len(c.Text)))
		for _, r := range c.Text {
			writeVarint(buf, uint64(r))
		}
		writeVarint(buf, uint64(c.Pos))
		writeID(buf, c.OriginLeft)
		writeID(buf, c.OriginRight)
	case opcontent.SeqDel:
		if c.Kind() == opcontent.KindTextDel {
			buf.WriteByte(wTextDel)
		} else {
			buf.WriteByte(wListDel)
		}
		writeVarint(buf, uint64(c.Pos))
		writeVarint(buf, zigzag(int64(c.Len)))
		writeID(buf, c.IDStart)
	case opcontent.ListIns:
		buf.WriteByte(wListIns)
		writeVarint(buf, uint64(len(c.Items)))
		for _, v := range c.Items {
			EncodeValue(buf, v)
		}
		writeVarint(buf, uint64(c.Pos))
		writeID(buf, c.OriginLeft)
		writeID(buf, c.OriginRight)
	case opcontent.Move:
		buf.WriteByte(wMove)
		writeID(buf, c.Elem.ID)
		writeVarint(buf, uint64(c.Elem.Lamport))
		writeVarint(buf, uint64(c.FromPos))
		writeVarint(buf, uint64(c.ToPos))
	case opcontent.Set:
		buf.WriteByte(wSet)
		writeVarint(buf, uint64(len(c.Key)))
		buf.WriteString(c.Key)
		writeID(buf, c.Elem.ID)
		writeVarint(buf, uint64(c.Elem.Lamport))
		EncodeValue(buf, c.Value)
	case opcontent.StyleStart:
		buf.WriteByte(wStyleStart)
		writeVarint(buf, uint64(c.Pos))
		writeVarint(buf, uint64(len(c.Key)))
		buf.WriteString(c.Key)
		EncodeValue(buf, c.Value)
	case opcontent.StyleEnd:
		buf.WriteByte(wStyleEnd)
		writeVarint(buf, uint64(c.Pos))
		writeVarint(buf, uint64(len(c.Key)))
		buf.WriteString(c.Key)
	case opcontent.MapDel:
		buf.WriteByte(wMapDel)
		writeVarint(buf, uint64(len(c.Key)))
		buf.WriteString(c.Key)
	default:
		crdterr.Fatalf("wire: unreachable op content %T", op.Content)
	}
}

// DecodeOp reads one op from r. counter is supplied by the caller (the
// change header carries the run's starting counter; per-op counters are
// derived from cumulative atom length, not stored on the wire).
func DecodeOp(r *bytes.Reader, counter int32) (oplog.Op, error) {
	cidx, err := readVarint(r)
	if err != nil {
		return oplog.Op{}, err
	}
	disc, err := r.ReadByte()
	if err != nil {
		return oplog.Op{}, crdterr.Wrap(crdterr.Decode, err, "read op discriminant")
	}
	switch disc {
	case wTextIns:
		n, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		text := make([]rune, n)
		for i := range text {
			u, err := readVarint(r)
			if err != nil {
				return oplog.Op{}, err
			}
			text[i] = rune(u)
		}
		pos, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		left, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		right, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.TextIns{Pos: int32(pos), Text: text, OriginLeft: left, OriginRight: right}}, nil
	case wTextDel, wListDel:
		pos, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		lenU, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		start, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		d, err := opcontent.NewSeqDel(int32(pos), int32(unzigzag(lenU)), start, disc == wListDel)
		if err != nil {
			return oplog.Op{}, err
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: d}, nil
	case wListIns:
		n, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		items := make([]value.Value, n)
		for i := range items {
			items[i], err = DecodeValue(r)
			if err != nil {
				return oplog.Op{}, err
			}
		}
		pos, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		left, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		right, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.ListIns{Pos: int32(pos), Items: items, OriginLeft: left, OriginRight: right}}, nil
	case wMove:
		idv, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		lam, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		from, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		to, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.Move{Elem: id.IDFull{ID: idv, Lamport: id.Lamport(lam)}, FromPos: int32(from), ToPos: int32(to)}}, nil
	case wSet:
		klen, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(r, kb); err != nil {
			return oplog.Op{}, crdterr.Wrap(crdterr.Decode, err, "read set key")
		}
		elemID, err := readID(r)
		if err != nil {
			return oplog.Op{}, err
		}
		elemLam, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		v, err := DecodeValue(r)
		if err != nil {
			return oplog.Op{}, err
		}
		elem := id.IDFull{ID: elemID, Lamport: id.Lamport(elemLam)}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.Set{Key: string(kb), Elem: elem, Value: v}}, nil
	case wStyleStart:
		pos, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		klen, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(r, kb); err != nil {
			return oplog.Op{}, crdterr.Wrap(crdterr.Decode, err, "read style key")
		}
		v, err := DecodeValue(r)
		if err != nil {
			return oplog.Op{}, err
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.StyleStart{Pos: int32(pos), Key: string(kb), Value: v}}, nil
	case wStyleEnd:
		pos, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		klen, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(r, kb); err != nil {
			return oplog.Op{}, crdterr.Wrap(crdterr.Decode, err, "read style key")
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.StyleEnd{Pos: int32(pos), Key: string(kb)}}, nil
	case wMapDel:
		klen, err := readVarint(r)
		if err != nil {
			return oplog.Op{}, err
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(r, kb); err != nil {
			return oplog.Op{}, crdterr.Wrap(crdterr.Decode, err, "read map del key")
		}
		return oplog.Op{Counter: counter, ContainerIdx: int32(cidx), Content: opcontent.MapDel{Key: string(kb)}}, nil
	default:
		return oplog.Op{}, crdterr.New(crdterr.Decode, "unknown op discriminant %d", disc)
	}
}

func writeID(buf *bytes.Buffer, i id.ID) {
	writeVarint(buf, uint64(i.Peer))
	writeVarint(buf, zigzag(int64(i.Counter)))
}

func readID(r *bytes.Reader) (id.ID, error) {
	peer, err := readVarint(r)
	if err != nil {
		return id.ID{}, err
	}
	ctr, err := readVarint(r)
	if err != nil {
		return id.ID{}, err
	}
	return id.ID{Peer: id.PeerID(peer), Counter: int32(unzigzag(ctr))}, nil
}
