// Package value implements the engine's recursive, structurally-shared
// document value: the tagged sum every container materializes into and
// every op content variant carries as payload.
package value

import (
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
)

// Kind discriminates a Value's variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindI64
	KindF64
	KindBinary
	KindString
	KindList
	KindMap
	KindContainerRef
)

// MaxDepth bounds nested Value depth; deeper values are rejected at the
// boundary with crdterr.DepthExceeded.
const MaxDepth = 128

// Value is a tagged sum. Heap variants (Binary, String, List, Map) are
// reference-counted via Go's GC and shared by pointer; mutation always
// produces a new Value (copy-on-write) rather than mutating shared
// backing storage, so concurrent readers of an old Value are always safe.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	bin  *[]byte
	str  *string
	list *[]Value
	m    *map[string]Value
	cref cid.ContainerID
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// I64 wraps a signed integer.
func I64(i int64) Value { return Value{kind: KindI64, i: i} }

// F64 wraps a float, normalizing any NaN bit pattern to a canonical NaN so
// that equality and hashing are stable regardless of how the NaN arose.
func F64(f float64) Value {
	if math.IsNaN(f) {
		f = math.NaN()
	}
	return Value{kind: KindF64, f: f}
}

// Binary wraps a byte slice. The slice is retained by reference; callers
// must not mutate it after handing it to Binary.
func Binary(b []byte) Value { return Value{kind: KindBinary, bin: &b} }

// String wraps a UTF-8 string.
func String(s string) Value { return Value{kind: KindString, str: &s} }

// List wraps a slice of values. Retained by reference; copy-on-write is the
// caller's responsibility (see Clone).
func List(vs []Value) Value { return Value{kind: KindList, list: &vs} }

// Map wraps a string-keyed map of values.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: &m} }

// ContainerRef denotes a nested container living at id.
func ContainerRef(id cid.ContainerID) Value { return Value{kind: KindContainerRef, cref: id} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) AsBool() bool { return v.b }
func (v Value) AsI64() int64 { return v.i }
func (v Value) AsF64() float64 { return v.f }
func (v Value) AsBinary() []byte {
	if v.bin == nil {
		return nil
	}
	return *v.bin
}
func (v Value) AsString() string {
	if v.str == nil {
		return ""
	}
	return *v.str
}
func (v Value) AsList() []Value {
	if v.list == nil {
		return nil
	}
	return *v.list
}
func (v Value) AsMap() map[string]Value {
	if v.m == nil {
		return nil
	}
	return *v.m
}
func (v Value) AsContainerRef() cid.ContainerID { return v.cref }

// Depth returns the nesting depth of v (0 for scalars, 1 + max(children)
// for List/Map).
func (v Value) Depth() int {
	switch v.kind {
	case KindList:
		max := 0
		for _, c := range v.AsList() {
			if d := c.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	case KindMap:
		max := 0
		for _, c := range v.AsMap() {
			if d := c.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	default:
		return 0
	}
}

// CheckDepth validates v against MaxDepth, returning a DepthExceeded error
// at the boundary rather than letting a pathological input recurse
// unbounded through the rest of the engine.
func CheckDepth(v Value) error {
	if v.Depth() > MaxDepth {
		return crdterr.New(crdterr.DepthExceeded, "value nesting %d exceeds max depth %d", v.Depth(), MaxDepth)
	}
	return nil
}

// Clone performs a copy-on-write clone: scalars are returned as-is (no heap
// data to share), heap variants get a fresh backing slice/map one level
// deep so a caller can mutate the clone without affecting v. Nested values
// remain shared until those are cloned in turn.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBinary:
		b := append([]byte(nil), v.AsBinary()...)
		return Binary(b)
	case KindList:
		l := append([]Value(nil), v.AsList()...)
		return List(l)
	case KindMap:
		m := make(map[string]Value, len(v.AsMap()))
		for k, val := range v.AsMap() {
			m[k] = val
		}
		return Map(m)
	default:
		return v
	}
}

// Equal is structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindI64:
		return v.i == o.i
	case KindF64:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBinary:
		return string(v.AsBinary()) == string(o.AsBinary())
	case KindString:
		return v.AsString() == o.AsString()
	case KindList:
		a, b := v.AsList(), o.AsList()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindMap:
		a, b := v.AsMap(), o.AsMap()
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	case KindContainerRef:
		return v.cref == o.cref
	default:
		crdterr.Fatalf("value: unreachable kind %d in Equal", v.kind)
		return false
	}
}

// Hash returns a content hash of v using bit representations for doubles
// (so -0.0 and 0.0 hash identically, per normalized Equal semantics) and a
// discriminant byte per variant, mixed through xxhash — the pack's common
// choice for non-cryptographic content hashing (e.g. github.com/
// erigontech/erigon uses cespare/xxhash extensively for keying).
func (v Value) Hash() uint64 {
	d := xxhash.New()
	var disc [1]byte
	disc[0] = byte(v.kind)
	_, _ = d.Write(disc[:])
	switch v.kind {
	case KindBool:
		if v.b {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
	case KindI64:
		_, _ = d.Write(u64Bytes(uint64(v.i)))
	case KindF64:
		f := v.f
		if f == 0 {
			f = 0 // fold -0.0 onto +0.0, which Equal treats as equal
		}
		_, _ = d.Write(u64Bytes(math.Float64bits(f)))
	case KindBinary:
		_, _ = d.Write(v.AsBinary())
	case KindString:
		_, _ = d.Write([]byte(v.AsString()))
	case KindList:
		for _, c := range v.AsList() {
			_, _ = d.Write(u64Bytes(c.Hash()))
		}
	case KindMap:
		// Map hashing must be order-independent: XOR per-key hashes rather
		// than feeding them through the running digest in iteration order.
		var acc uint64
		for k, c := range v.AsMap() {
			kh := xxhash.Sum64String(k)
			acc ^= kh ^ c.Hash()
		}
		_, _ = d.Write(u64Bytes(acc))
	case KindContainerRef:
		_, _ = d.Write([]byte(v.cref.String()))
	}
	return d.Sum64()
}

func u64Bytes(u uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b[:]
}
