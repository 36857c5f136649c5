// Package container implements the closed container sum-type and its
// dispatcher, per the "polymorphism over container types" design note:
// one Container variant per internal/state type, switched on Kind rather
// than expressed through an open interface hierarchy.
package container

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/state"
	"github.com/Polqt/crdtcollab/internal/value"
)

// Container wraps exactly one of the four internal/state variants, dense
// enough that the document can hold a homogeneous slice/map of them while
// still dispatching to the right apply logic.
type Container struct {
	ID   cid.ContainerID
	Kind cid.Type

	// Detached marks a container orphaned by a recursive teardown (its
	// parent slot was overwritten or deleted): set the instant teardown
	// reaches it, before its own children are torn down. The container stays
	// in the registry with this flag set. Handle construction on a detached
	// id is a UsageError.
	Detached bool

	text  *state.TextState
	list  *state.ListState
	mlist *state.MovableListState
	m     *state.MapState
}

// NewText, NewList, NewMovableList, NewMap construct an empty container of
// the given kind at id.
func NewText(id cid.ContainerID) *Container {
	return &Container{ID: id, Kind: cid.TypeText, text: state.NewTextState()}
}
func NewList(id cid.ContainerID) *Container {
	return &Container{ID: id, Kind: cid.TypeList, list: state.NewListState()}
}
func NewMovableList(id cid.ContainerID) *Container {
	return &Container{ID: id, Kind: cid.TypeMovableList, mlist: state.NewMovableListState()}
}
func NewMap(id cid.ContainerID) *Container {
	return &Container{ID: id, Kind: cid.TypeMap, m: state.NewMapState()}
}

// Clone returns a deep copy of c's current state (the underlying kind's
// state is cloned; the id and kind are shared since they never change).
// Used by the document's transaction guard to set aside the pre-transaction
// state before the first mutation in a scope; an aborted transaction is
// undone by reinstalling that clone in the registry wholesale instead of
// computing and replaying inverse diffs.
func (c *Container) Clone() *Container {
	out := &Container{ID: c.ID, Kind: c.Kind, Detached: c.Detached}
	switch c.Kind {
	case cid.TypeText:
		out.text = c.text.Clone()
	case cid.TypeList:
		out.list = c.list.Clone()
	case cid.TypeMovableList:
		out.mlist = c.mlist.Clone()
	case cid.TypeMap:
		out.m = c.m.Clone()
	}
	return out
}

// Text, List, MovableList, Map return the typed state, nil if this
// container is a different kind — callers dispatch on Kind first.
func (c *Container) Text() *state.TextState             { return c.text }
func (c *Container) List() *state.ListState              { return c.list }
func (c *Container) MovableList() *state.MovableListState { return c.mlist }
func (c *Container) Map() *state.MapState                { return c.m }

// Retreat/Forward dispatch checkout re-anchoring to the sequence
// containers. Map and MovableList have no tracker to retreat: they return
// no diff, and checkout leaves their state as it is.
func (c *Container) Retreat(spans []id.IDSpan) state.Diff {
	switch c.Kind {
	case cid.TypeText:
		return c.text.Retreat(spans)
	case cid.TypeList:
		return c.list.Retreat(spans)
	default:
		return nil
	}
}

func (c *Container) Forward(spans []id.IDSpan) state.Diff {
	switch c.Kind {
	case cid.TypeText:
		return c.text.Forward(spans)
	case cid.TypeList:
		return c.list.Forward(spans)
	default:
		return nil
	}
}

// Children returns the ids of every container nested directly inside c
// right now, dispatched by Kind. Text has none (it cannot hold a
// ContainerRef). Recursive teardown walks a detached subtree with this.
func (c *Container) Children() []cid.ContainerID {
	switch c.Kind {
	case cid.TypeList:
		return c.list.Children()
	case cid.TypeMovableList:
		return c.mlist.Children()
	case cid.TypeMap:
		return c.m.Children()
	default:
		return nil
	}
}

// ToValue materializes the container's current content, dispatched by
// Kind.
func (c *Container) ToValue() value.Value {
	switch c.Kind {
	case cid.TypeText:
		return c.text.ToValue()
	case cid.TypeList:
		return c.list.ToValue()
	case cid.TypeMovableList:
		return c.mlist.ToValue()
	case cid.TypeMap:
		return c.m.ToValue()
	default:
		return value.Null()
	}
}
