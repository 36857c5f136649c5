package doc

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/state"
)

// detach recursively tears down the subtree rooted at target: the
// container is marked Detached, every container currently nested inside it
// is torn down first (so deleting a Map that itself holds further nested
// containers doesn't orphan them silently). target stays in the registry,
// marked Detached, so a later openChild on it is refused. A no-op if target
// was never registered or was already torn down by an earlier edit in the
// same diff. Callers must hold d.mu.
func (d *Document) detach(target cid.ContainerID) {
	c, ok := d.registry.Get(target)
	if !ok || c.Detached {
		return
	}
	c.Detached = true
	for _, child := range c.Children() {
		d.detach(child)
	}
}

// detachOrphans scans diff for edits that orphaned a nested container
// (§4.3's "apply pathways" — a list/map/movable-list delete or overwrite of
// a slot holding a ContainerRef) and tears each one down. Callers must hold
// d.mu.
func (d *Document) detachOrphans(diff state.Diff) {
	for _, e := range diff {
		if e.HasDetached {
			d.detach(e.Detached)
		}
	}
}
