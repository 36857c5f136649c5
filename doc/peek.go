package doc

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
)

// TextValue returns a root Text container's current content, creating an
// empty one if name has never been touched. A convenience read path for
// callers that only ever render a document's text and never need the full
// Txn/handle surface (e.g. a snapshot-on-join response).
func (d *Document) TextValue(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureRoot(name, cid.TypeText).Text().ToValue().AsString()
}
