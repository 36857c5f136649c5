// Package state implements the four container states the document
// materializes: Text, List, MovableList, and Map. Each wraps the shared
// pieces (internal/fugue for sequence containers, internal/id for tie
// breaks) with the value-level apply logic and the diff it hands back for
// events, per the "apply pathways" design note: local ops update state in
// place, remote diffs are replayed sequentially.
package state

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/value"
)

// EditKind discriminates one entry of a Diff.
type EditKind uint8

const (
	EditInsert EditKind = iota
	EditDelete
	EditSet
	EditMove
)

// Edit is one unit of a container's externally-observable diff. Only the
// fields relevant to Kind are populated; this mirrors the spec's
// requirement that diffs be composable regardless of container shape by
// giving every container kind one common wire/event shape instead of a
// family of unrelated diff types.
type Edit struct {
	Kind EditKind

	// Sequence containers (Text, List).
	Pos   int32
	Len   int32         // EditDelete
	Items []value.Value // EditInsert

	// Map, MovableList.
	Key   string
	Value value.Value
	Elem  id.IDFull

	// MovableList move.
	From, To int32

	// Set on EditSet/EditDelete when this edit orphaned the nested
	// container previously held in this slot (overwritten or removed
	// outright) — Detached is only meaningful when HasDetached is true,
	// since the zero ContainerID is itself a valid root container id.
	// Document.detach uses this to recursively tear the child (and any of
	// its own children) down via the container registry.
	Detached    cid.ContainerID
	HasDetached bool
}

// Diff is the ordered edit stream produced by one local op or one remote
// integration against a single container.
type Diff []Edit

// Compose appends rest onto d. Sequential application of d then rest on a
// state is equivalent to applying d.Compose(rest) once, since both forms
// are simply the same ordered edit list; composition is concatenation
// because every Edit already carries state-relative (not diff-relative)
// positions computed at apply time.
func (d Diff) Compose(rest Diff) Diff {
	if len(rest) == 0 {
		return d
	}
	return append(append(Diff(nil), d...), rest...)
}
