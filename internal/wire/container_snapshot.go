package wire

import (
	"bytes"
	"io"

	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

// containerElem is one container entry reduced to the shape every kind
// shares before it hits the §6 columnar tail: a value, the id_full of the
// op that authored it, and (Map only) the key it lives at. Every kind's
// encoder builds a []containerElem; the peer-table/delta-RLE tail below is
// then written once instead of once per kind.
type containerElem struct {
	key string // Map only; zero value for sequence containers
	val value.Value
	id  id.IDFull
}

func elemsOf(c *container.Container) ([]containerElem, error) {
	switch c.Kind {
	case cid.TypeText:
		ids := c.Text().IDs()
		runes := []rune(c.Text().ToValue().AsString())
		if len(ids) != len(runes) {
			return nil, crdterr.New(crdterr.Usage, "text snapshot: %d ids for %d runes", len(ids), len(runes))
		}
		out := make([]containerElem, len(runes))
		for i, r := range runes {
			out[i] = containerElem{val: value.String(string(r)), id: ids[i]}
		}
		return out, nil
	case cid.TypeList:
		ids := c.List().IDs()
		items := c.List().ToValue().AsList()
		if len(ids) != len(items) {
			return nil, crdterr.New(crdterr.Usage, "list snapshot: %d ids for %d items", len(ids), len(items))
		}
		out := make([]containerElem, len(items))
		for i, v := range items {
			out[i] = containerElem{val: v, id: ids[i]}
		}
		return out, nil
	case cid.TypeMovableList:
		elems := c.MovableList().Elements()
		out := make([]containerElem, len(elems))
		for i, e := range elems {
			out[i] = containerElem{val: e.Value, id: e.ID}
		}
		return out, nil
	case cid.TypeMap:
		entries := c.Map().Entries()
		out := make([]containerElem, len(entries))
		for i, e := range entries {
			out[i] = containerElem{key: e.Key, val: e.Value, id: e.ID}
		}
		return out, nil
	default:
		return nil, crdterr.New(crdterr.Decode, "container snapshot: unknown kind %d", c.Kind)
	}
}

// EncodeContainerSnapshot writes c's current materialized state in the §6
// columnar form: a kind byte, the elements' values (Map entries prefixed
// by their key, since the shared tail only carries position order, not a
// string), then a peer-ID table and one delta-RLE {peer_index, counter,
// lamport-counter} triple per element, in the same order as the value
// block. An empty container (no elements) encodes as just the kind byte
// plus two zero-length-count varints.
func EncodeContainerSnapshot(c *container.Container) ([]byte, error) {
	elems, err := elemsOf(c)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(c.Kind))
	writeVarint(&buf, uint64(len(elems)))

	hasKeys := c.Kind == cid.TypeMap
	for _, e := range elems {
		if hasKeys {
			writeVarint(&buf, uint64(len(e.key)))
			buf.WriteString(e.key)
		}
		EncodeValue(&buf, e.val)
	}

	peerIndex := make(map[id.PeerID]int)
	var peers []id.PeerID
	for _, e := range elems {
		if _, ok := peerIndex[e.id.Peer]; !ok {
			peerIndex[e.id.Peer] = len(peers)
			peers = append(peers, e.id.Peer)
		}
	}
	writeVarint(&buf, uint64(len(peers)))
	for _, p := range peers {
		writeVarint(&buf, uint64(p))
	}

	prevCounter := make(map[id.PeerID]int32, len(peers))
	for _, e := range elems {
		writeVarint(&buf, uint64(peerIndex[e.id.Peer]))
		writeVarint(&buf, zigzag(int64(e.id.Counter-prevCounter[e.id.Peer])))
		writeVarint(&buf, zigzag(int64(e.id.Lamport)-int64(e.id.Counter)))
		prevCounter[e.id.Peer] = e.id.Counter
	}
	return buf.Bytes(), nil
}

// DecodeContainerSnapshot rebuilds a container of kind cID.Type() from the
// form EncodeContainerSnapshot writes. The rebuilt container materializes
// to the same value the encoder saw, but its internal origin pointers are
// a straight-line chain (each element anchored to its predecessor) rather
// than the true historical origins — those aren't part of this format, per
// §6's value-plus-id columns, only the full OpLog columnar form
// (EncodeOpLog/EncodeChanges) carries them. A decoded container is
// therefore a correct read-only materialization (display, resync
// baseline) but must not have further concurrent remote ops integrated
// against origins that predate the snapshot; rebuilding a replica that
// will keep merging needs Document.Import against real history instead.
func DecodeContainerSnapshot(cID cid.ContainerID, data []byte) (*container.Container, error) {
	r := bytes.NewReader(data)
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, crdterr.Wrap(crdterr.Decode, err, "read container snapshot kind")
	}
	kind := cid.Type(kindByte)
	if kind != cID.Type() {
		return nil, crdterr.New(crdterr.Decode, "container snapshot: id kind %s does not match encoded kind %d", cID.Type(), kind)
	}

	count, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	hasKeys := kind == cid.TypeMap
	keys := make([]string, count)
	vals := make([]value.Value, count)
	for i := uint64(0); i < count; i++ {
		if hasKeys {
			klen, err := readVarint(r)
			if err != nil {
				return nil, err
			}
			kb := make([]byte, klen)
			if _, err := io.ReadFull(r, kb); err != nil {
				return nil, crdterr.Wrap(crdterr.Decode, err, "read container snapshot key")
			}
			keys[i] = string(kb)
		}
		v, err := DecodeValue(r)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

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

	ids := make([]id.IDFull, count)
	prevCounter := make([]int32, peerCount)
	for i := uint64(0); i < count; i++ {
		pidx, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		if pidx >= peerCount {
			return nil, crdterr.New(crdterr.Decode, "container snapshot: peer index %d out of range", pidx)
		}
		dcounter, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		counter := prevCounter[pidx] + int32(unzigzag(dcounter))
		lmc, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		lamport := id.Lamport(int64(counter) + unzigzag(lmc))
		ids[i] = id.IDFull{ID: id.ID{Peer: peers[pidx], Counter: counter}, Lamport: lamport}
		prevCounter[pidx] = counter
	}

	switch kind {
	case cid.TypeText:
		c := container.NewText(cID)
		origin := id.ID{}
		for i, v := range vals {
			r := []rune(v.AsString())[0]
			c.Text().ApplyInsert(ids[i].ID, ids[i].Lamport, origin, id.ID{}, r)
			origin = ids[i].ID
		}
		return c, nil
	case cid.TypeList:
		c := container.NewList(cID)
		origin := id.ID{}
		for i, v := range vals {
			c.List().ApplyInsert(ids[i].ID, ids[i].Lamport, origin, id.ID{}, v)
			origin = ids[i].ID
		}
		return c, nil
	case cid.TypeMovableList:
		c := container.NewMovableList(cID)
		for i, v := range vals {
			c.MovableList().Insert(int32(i), v, ids[i])
		}
		return c, nil
	case cid.TypeMap:
		c := container.NewMap(cID)
		for i, v := range vals {
			c.Map().Set(keys[i], v, ids[i])
		}
		return c, nil
	default:
		return nil, crdterr.New(crdterr.Decode, "container snapshot: unknown kind %d", kind)
	}
}
