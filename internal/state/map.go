package state

import (
	"sort"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

// Entry is one live (key, value, id_full) triple, used by the columnar
// container snapshot codec (§6) — the map equivalent of a sequence
// container's per-position (value, id_full) pair.
type Entry struct {
	Key   string
	Value value.Value
	ID    id.IDFull
}

type mapEntry struct {
	value     value.Value
	id        id.IDFull
	tombstone bool // concurrent-set loser, or explicit delete; key absent from Keys()
}

// MapState is the Map container: string key to {value, id_full}, last
// writer wins on concurrent Set of the same key (higher (lamport, peer),
// per internal/id.IDFull.Less). Adapted from the teacher's LWWRegister —
// same "keep if ts greater, else tie-break on id" shape, generalized from
// wall-clock timestamp + node id to Lamport + peer.
type MapState struct {
	entries map[string]mapEntry
	// childIndex maps a nested container's id back to the key holding its
	// ContainerRef, so a recursive delete can find and tear down children.
	childIndex map[cid.ContainerID]string
}

// NewMapState returns an empty map container state.
func NewMapState() *MapState {
	return &MapState{entries: make(map[string]mapEntry), childIndex: make(map[cid.ContainerID]string)}
}

// Clone returns a deep copy, used by the document's transaction guard to
// set aside the pre-transaction state before the first mutation in a scope.
func (m *MapState) Clone() *MapState {
	entries := make(map[string]mapEntry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	childIndex := make(map[cid.ContainerID]string, len(m.childIndex))
	for k, v := range m.childIndex {
		childIndex[k] = v
	}
	return &MapState{entries: entries, childIndex: childIndex}
}

// Set applies a Set op (local or remote) for key, tie-breaking against any
// existing entry. Returns the diff to emit: empty if this write lost the
// tie (the op is still recorded causally via the OpLog, but the visible
// value at key does not change).
func (m *MapState) Set(key string, val value.Value, author id.IDFull) Diff {
	existing, had := m.entries[key]
	if had && !existing.tombstone && !existing.id.Less(author) {
		// existing write is not "less" than the incoming one, i.e. existing
		// wins or the incoming one is identical; no visible change.
		return nil
	}
	edit := Edit{Kind: EditSet, Key: key, Value: val}
	if had {
		if ref, ok := refOf(existing.value); ok {
			delete(m.childIndex, ref)
			edit.Detached, edit.HasDetached = ref, true
		}
	}
	m.entries[key] = mapEntry{value: val, id: author}
	if ref, ok := refOf(val); ok {
		m.childIndex[ref] = key
	}
	return Diff{edit}
}

// Delete tombstones key (explicit delete op), always wins over any earlier
// Set regardless of tie-break — deletes are causally last by construction
// (the op ordering the transaction assigns it a higher Lamport than
// whatever it observed).
func (m *MapState) Delete(key string, author id.IDFull) Diff {
	existing, had := m.entries[key]
	if !had || existing.tombstone {
		return nil
	}
	edit := Edit{Kind: EditDelete, Key: key}
	if ref, ok := refOf(existing.value); ok {
		delete(m.childIndex, ref)
		edit.Detached, edit.HasDetached = ref, true
	}
	m.entries[key] = mapEntry{id: author, tombstone: true}
	return Diff{edit}
}

// Children returns the ids of every nested container currently reachable
// from this map via some key's live ContainerRef.
func (m *MapState) Children() []cid.ContainerID {
	out := make([]cid.ContainerID, 0, len(m.childIndex))
	for c := range m.childIndex {
		out = append(out, c)
	}
	return out
}

// Get returns the live value at key, false if absent or tombstoned.
func (m *MapState) Get(key string) (value.Value, bool) {
	e, ok := m.entries[key]
	if !ok || e.tombstone {
		return value.Value{}, false
	}
	return e.value, true
}

// Keys returns every live (non-tombstoned) key.
func (m *MapState) Keys() []string {
	out := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.tombstone {
			out = append(out, k)
		}
	}
	return out
}

// Entries returns every live (key, value, id_full) triple, sorted by key
// for a deterministic snapshot encoding.
func (m *MapState) Entries() []Entry {
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.tombstone {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		e := m.entries[k]
		out[i] = Entry{Key: k, Value: e.value, ID: e.id}
	}
	return out
}

// ToValue materializes the map's current content as a value.Value.
func (m *MapState) ToValue() value.Value {
	out := make(map[string]value.Value, len(m.entries))
	for k, e := range m.entries {
		if !e.tombstone {
			out[k] = e.value
		}
	}
	return value.Map(out)
}

func refOf(v value.Value) (cid.ContainerID, bool) {
	if v.Kind() == value.KindContainerRef {
		return v.AsContainerRef(), true
	}
	return cid.ContainerID{}, false
}
