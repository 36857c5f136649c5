// Package wire implements the binary op/value wire format and the
// document snapshot encoding (§6): varint-coded fields via
// github.com/multiformats/go-varint, a discriminant-tagged binary Value
// encoding, a self-describing human-readable Value encoding for the demo
// server's JSON messages, and columnar snapshot encoding for container
// history.
package wire

import (
	"bytes"
	"io"
	"math"
	"sort"

	varint "github.com/multiformats/go-varint"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/value"
)

// humanSentinel disambiguates an encoded container reference from a plain
// string in the self-describing human-readable form, where both are
// otherwise just strings (e.g. once placed in a JSON session message).
const humanSentinel = "🦜:"

// discriminant bytes for the binary Value form; stable across versions
// since they are persisted in snapshots.
const (
	dNull byte = iota
	dBool
	dI64
	dF64
	dBinary
	dString
	dList
	dMap
	dContainerRef
)

// EncodeValue appends v's discriminant-tagged binary form to buf.
func EncodeValue(buf *bytes.Buffer, v value.Value) {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteByte(dNull)
	case value.KindBool:
		buf.WriteByte(dBool)
		if v.AsBool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.KindI64:
		buf.WriteByte(dI64)
		writeVarint(buf, zigzag(v.AsI64()))
	case value.KindF64:
		buf.WriteByte(dF64)
		var b [8]byte
		bits := math.Float64bits(v.AsF64())
		for i := 0; i < 8; i++ {
			b[i] = byte(bits >> (8 * i))
		}
		buf.Write(b[:])
	case value.KindBinary:
		buf.WriteByte(dBinary)
		bs := v.AsBinary()
		writeVarint(buf, uint64(len(bs)))
		buf.Write(bs)
	case value.KindString:
		buf.WriteByte(dString)
		s := v.AsString()
		writeVarint(buf, uint64(len(s)))
		buf.WriteString(s)
	case value.KindList:
		buf.WriteByte(dList)
		items := v.AsList()
		writeVarint(buf, uint64(len(items)))
		for _, it := range items {
			EncodeValue(buf, it)
		}
	case value.KindMap:
		buf.WriteByte(dMap)
		m := v.AsMap()
		writeVarint(buf, uint64(len(m)))
		// Deterministic key order for a reproducible encoding (snapshots
		// must be byte-stable across runs for the same logical content).
		keys := sortedKeys(m)
		for _, k := range keys {
			writeVarint(buf, uint64(len(k)))
			buf.WriteString(k)
			EncodeValue(buf, m[k])
		}
	case value.KindContainerRef:
		buf.WriteByte(dContainerRef)
		s := v.AsContainerRef().String()
		writeVarint(buf, uint64(len(s)))
		buf.WriteString(s)
	default:
		crdterr.Fatalf("wire: unreachable value kind %d", v.Kind())
	}
}

// DecodeValue reads one binary-form Value from r.
func DecodeValue(r *bytes.Reader) (value.Value, error) {
	disc, err := r.ReadByte()
	if err != nil {
		return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read value discriminant")
	}
	switch disc {
	case dNull:
		return value.Null(), nil
	case dBool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read bool value")
		}
		return value.Bool(b != 0), nil
	case dI64:
		u, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.I64(unzigzag(u)), nil
	case dF64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read f64 value")
		}
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(b[i]) << (8 * i)
		}
		return value.F64(math.Float64frombits(bits)), nil
	case dBinary:
		n, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read binary value")
		}
		return value.Binary(b), nil
	case dString:
		n, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read string value")
		}
		return value.String(string(b)), nil
	case dList:
		n, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		items := make([]value.Value, n)
		for i := range items {
			items[i], err = DecodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.List(items), nil
	case dMap:
		n, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		m := make(map[string]value.Value, n)
		for i := uint64(0); i < n; i++ {
			klen, err := readVarint(r)
			if err != nil {
				return value.Value{}, err
			}
			kb := make([]byte, klen)
			if _, err := io.ReadFull(r, kb); err != nil {
				return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read map key")
			}
			v, err := DecodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			m[string(kb)] = v
		}
		return value.Map(m), nil
	case dContainerRef:
		n, err := readVarint(r)
		if err != nil {
			return value.Value{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return value.Value{}, crdterr.Wrap(crdterr.Decode, err, "read container ref value")
		}
		id, err := cid.Parse(string(b))
		if err != nil {
			return value.Value{}, err
		}
		return value.ContainerRef(id), nil
	default:
		return value.Value{}, crdterr.New(crdterr.Decode, "unknown value discriminant %d", disc)
	}
}

// EncodeHuman renders v as a plain Go value suitable for JSON: strings and
// container refs are both plain strings at the JSON level, disambiguated
// by the humanSentinel prefix (with an escaping double-prefix for a
// genuine string that happens to start with it).
func EncodeHuman(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.AsBool()
	case value.KindI64:
		return v.AsI64()
	case value.KindF64:
		return v.AsF64()
	case value.KindBinary:
		return v.AsBinary()
	case value.KindString:
		s := v.AsString()
		if len(s) >= len(humanSentinel) && s[:len(humanSentinel)] == humanSentinel {
			return humanSentinel + s // escape: double the sentinel
		}
		return s
	case value.KindList:
		items := v.AsList()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = EncodeHuman(it)
		}
		return out
	case value.KindMap:
		m := v.AsMap()
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = EncodeHuman(mv)
		}
		return out
	case value.KindContainerRef:
		return humanSentinel + v.AsContainerRef().String()
	default:
		crdterr.Fatalf("wire: unreachable value kind %d", v.Kind())
		return nil
	}
}

// DecodeHuman is the inverse of EncodeHuman, given a value decoded from
// JSON (so numbers arrive as float64, per encoding/json's default).
func DecodeHuman(x any) (value.Value, error) {
	switch t := x.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case float64:
		return value.F64(t), nil
	case string:
		if len(t) >= 2*len(humanSentinel) && t[:2*len(humanSentinel)] == humanSentinel+humanSentinel {
			return value.String(t[len(humanSentinel):]), nil
		}
		if len(t) >= len(humanSentinel) && t[:len(humanSentinel)] == humanSentinel {
			id, err := cid.Parse(t[len(humanSentinel):])
			if err != nil {
				return value.Value{}, err
			}
			return value.ContainerRef(id), nil
		}
		return value.String(t), nil
	case []any:
		items := make([]value.Value, len(t))
		for i, it := range t {
			v, err := DecodeHuman(it)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.List(items), nil
	case map[string]any:
		out := make(map[string]value.Value, len(t))
		for k, mv := range t {
			v, err := DecodeHuman(mv)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = v
		}
		return value.Map(out), nil
	default:
		return value.Value{}, crdterr.New(crdterr.Decode, "unsupported human-value type %T", x)
	}
}

func writeVarint(buf *bytes.Buffer, u uint64) { buf.Write(varint.ToUvarint(u)) }

func readVarint(r *bytes.Reader) (uint64, error) {
	u, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, crdterr.Wrap(crdterr.Decode, err, "read varint")
	}
	return u, nil
}

// zigzag/unzigzag map signed integers onto the unsigned varint space so
// small negative numbers (e.g. short reversed deletes) still encode
// compactly.
func zigzag(i int64) uint64   { return uint64((i << 1) ^ (i >> 63)) }
func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

func sortedKeys(m map[string]value.Value) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
