// Package doc implements the Document facade (§4, §5): the single-owner
// entry point wiring together the OpLog/DAG, the container registry, and
// transactional editing, checkout, import/export, and subscriptions.
//
// Grounded on the teacher's session.Hub/session.Room ownership model (one
// mutex-guarded struct per collaborative document, never shared mutable
// state crossing a goroutine boundary without it) generalized from a single
// RGA buffer to the full container tree.
package doc

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Polqt/crdtcollab/internal/container"
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/oplog"
)

// Document owns one OpLog+DAG, one container registry, and the document's
// current version/frontier. Every mutating or checkout operation is
// serialized by mu; readers that only need a snapshot of VV/Frontier take
// the lock just long enough to copy it.
type Document struct {
	mu   sync.Mutex
	peer id.PeerID
	log  *zap.Logger

	ops      *oplog.OpLog
	registry *container.Registry

	// view is the frontier the container tree is currently materialized at.
	// It tracks d.ops.Frontier() (the causal tip) after every local commit
	// and remote integration; Checkout moves it to an arbitrary past
	// frontier without touching the OpLog's own history, so VV/Frontier
	// reflect "what's rendered", not "what's been integrated". Edits always
	// author against the OpLog's tip, so a Txn while checked out away from
	// tip is only well-formed after checking back out to it first.
	view id.Frontier

	// containerIdx is the compact per-document integer index Op.ContainerIdx
	// refers to, assigned the first time a container is touched by a local
	// edit or encountered while decoding a remote op. Distinct from the
	// registry's string-keyed lookup: this is purely a wire-size
	// optimization (a varint instead of a ContainerID string per op).
	containerIdx map[cid.ContainerID]int32
	idxContainer []cid.ContainerID

	subs     map[string][]subEntry
	subToken int
}

// New returns an empty Document.
func New(opts Options) *Document {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		peer:         opts.resolvePeer(),
		log:          logger,
		ops:          oplog.New(logger, opts.DeferredCap),
		registry:     container.NewRegistry(),
		containerIdx: make(map[cid.ContainerID]int32),
		subs:         make(map[string][]subEntry),
	}
}

// Peer returns this document's replica id.
func (d *Document) Peer() id.PeerID { return d.peer }

// VV returns a copy of the version vector at the document's current
// materialized view (not necessarily the OpLog's full history tip — see
// Checkout).
func (d *Document) VV() id.VV {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ops.VVOfFrontier(d.view)
}

// Frontier returns the document's current materialized-view frontier.
func (d *Document) Frontier() id.Frontier {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view.Clone()
}

// indexOf returns id's compact container index, assigning the next free one
// on first reference. Callers must hold d.mu.
func (d *Document) indexOf(cID cid.ContainerID) int32 {
	if idx, ok := d.containerIdx[cID]; ok {
		return idx
	}
	idx := int32(len(d.idxContainer))
	d.containerIdx[cID] = idx
	d.idxContainer = append(d.idxContainer, cID)
	return idx
}

// containerAt reverses indexOf, fatal if idx was never assigned — callers
// only ever see indices this document itself handed out (locally) or that a
// remote peer's export enumerated in the same order it assigns them here.
func (d *Document) containerAt(idx int32) cid.ContainerID {
	return d.idxContainer[idx]
}

// ensureRoot returns name's root container of kind typ, creating an empty
// one on first reference. Callers must hold d.mu.
func (d *Document) ensureRoot(name string, kind cid.Type) *container.Container {
	rootID := cid.Root(name, kind)
	c, ok := d.registry.Get(rootID)
	if ok {
		return c
	}
	c = newContainer(rootID, kind)
	d.registry.Put(c)
	d.indexOf(rootID)
	return c
}

// ensureChild returns the container identified by ref (a "normal"
// container id minted by InsertContainer/SetContainer), creating an empty
// one on first reference — which may be on the authoring replica itself
// (ref was just minted) or on a remote replica integrating the op that
// carries this ref for the first time. Both paths agree on ref's identity,
// so this never races with a concurrently-created container of the same
// id.
func (d *Document) ensureChild(ref cid.ContainerID) *container.Container {
	c, ok := d.registry.Get(ref)
	if ok {
		return c
	}
	c = newContainer(ref, ref.Type())
	d.registry.Put(c)
	d.indexOf(ref)
	return c
}

// openChild resolves ref for Txn.OpenText/OpenList/OpenMovableList/OpenMap:
// ensureChild's create-on-first-reference behavior for a ref this replica
// has never seen, but a UsageError instead of a silent zombie recreation if
// ref names a container a recursive teardown already detached. Callers
// must hold d.mu.
func (d *Document) openChild(ref cid.ContainerID) (*container.Container, error) {
	if c, ok := d.registry.Get(ref); ok {
		if c.Detached {
			return nil, crdterr.New(crdterr.Usage, "open %s: container is detached", ref)
		}
		return c, nil
	}
	return d.ensureChild(ref), nil
}

// ensureContainerIdx ensures cID's container exists (creating an empty one
// of the right kind on first reference, root or nested) and returns its
// local compact index. Used when importing a remote export's container
// table, whose entries may name containers this replica has never touched.
func (d *Document) ensureContainerIdx(cID cid.ContainerID) int32 {
	if cID.IsRoot() {
		d.ensureRoot(cID.Name(), cID.Type())
	} else {
		d.ensureChild(cID)
	}
	return d.indexOf(cID)
}

func newContainer(cID cid.ContainerID, kind cid.Type) *container.Container {
	switch kind {
	case cid.TypeText:
		return container.NewText(cID)
	case cid.TypeList:
		return container.NewList(cID)
	case cid.TypeMovableList:
		return container.NewMovableList(cID)
	default:
		return container.NewMap(cID)
	}
}
