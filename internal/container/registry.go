package container

import (
	"github.com/google/btree"

	"github.com/Polqt/crdtcollab/internal/container/cid"
)

type regEntry struct {
	key string
	c   *Container
}

func lessEntry(a, b regEntry) bool { return a.key < b.key }

// Registry is the document-wide container-index side table: every
// container the document has ever created, keyed by ContainerID. It is
// backed by google/btree rather than a plain map so that Ascend visits it
// in a stable, deterministic key order instead of Go's randomized map
// iteration; Document.Checkout walks every container this way (see
// DESIGN.md).
type Registry struct {
	tree *btree.BTreeG[regEntry]
}

// NewRegistry returns an empty container registry.
func NewRegistry() *Registry {
	return &Registry{tree: btree.NewG(32, lessEntry)}
}

// Put registers c, overwriting any existing entry at the same id.
func (r *Registry) Put(c *Container) {
	r.tree.ReplaceOrInsert(regEntry{key: c.ID.String(), c: c})
}

// Get looks up the container at id, false if never registered.
func (r *Registry) Get(id cid.ContainerID) (*Container, bool) {
	e, ok := r.tree.Get(regEntry{key: id.String()})
	if !ok {
		return nil, false
	}
	return e.c, true
}

// Delete drops the container at id from the registry; the container's value
// itself is left for Go's GC once nothing references it. Recursive teardown
// does not call it: a detached container stays registered, marked
// Detached.
func (r *Registry) Delete(id cid.ContainerID) {
	r.tree.Delete(regEntry{key: id.String()})
}

// Len returns the number of registered containers.
func (r *Registry) Len() int { return r.tree.Len() }

// Ascend visits every container in deterministic ContainerID-string order,
// stopping early if fn returns false. The order is stable across runs for
// the same container set.
func (r *Registry) Ascend(fn func(*Container) bool) {
	r.tree.Ascend(func(e regEntry) bool { return fn(e.c) })
}
