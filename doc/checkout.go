package doc

import (
	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/state"
)

// Checkout moves the document's materialized view to target, retreating
// ops on the path out of the current view and forwarding ops on the path
// into it (§4.5). It returns a VersionError (§7) if target names an id not
// covered by the DAG, rather than checking out to a half-valid frontier.
//
// Only Text and List carry a position tracker that can be reversibly
// retreated; Map and MovableList resolve conflicts by (lamport, peer) stamp
// rather than position, so their current materialized value already is
// their only representable state at any frontier that dominates every
// write contributing to it — checking out to an ancestor frontier leaves
// them rendering the same value they would at the tip. This mirrors
// Container.Retreat/Forward's own no-op default for those two kinds.
//
// A Txn always authors against the OpLog's causal tip, not the checked-out
// view — call Checkout(doc.Frontier-at-tip) (or integrate a remote change,
// which re-synchronizes the view itself) before editing again after a
// checkout away from tip.
func (d *Document) Checkout(target id.Frontier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range target {
		if !d.ops.Has(t) {
			return crdterr.New(crdterr.Version, "checkout: %s not covered by the DAG", t)
		}
	}
	d.checkoutLocked(target)
	return nil
}

func (d *Document) checkoutLocked(target id.Frontier) {
	retreat, forward := d.ops.FindPath(d.view, target)
	if len(retreat) == 0 && len(forward) == 0 {
		return
	}

	oldVV := d.ops.VVOfFrontier(d.view)
	type touched struct {
		cID  cid.ContainerID
		diff state.Diff
	}
	var all []touched
	d.registry.Ascend(func(c *container.Container) bool {
		diff := c.Retreat(retreat).Compose(c.Forward(forward))
		if len(diff) > 0 {
			all = append(all, touched{cID: c.ID, diff: diff})
		}
		return true
	})

	d.view = target.Clone()
	newVV := d.ops.VVOfFrontier(d.view)
	for _, t := range all {
		d.notify(Event{ContainerID: t.cID, OldVersion: oldVV, NewVersion: newVV, Diff: t.diff, Origin: OriginRemote})
	}
}
