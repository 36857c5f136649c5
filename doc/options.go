package doc

import (
	"encoding/binary"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Polqt/crdtcollab/internal/id"
)

// Options configures a new Document.
type Options struct {
	// Peer pins this replica's id. Zero mints a fresh one from a random
	// UUID, which is the right default for a new document; pass an
	// explicit value when rehydrating a replica that must keep authoring
	// under its old identity (e.g. resuming after a crash).
	Peer id.PeerID

	// Logger receives the document's structured trace of appended and
	// integrated changes. A nil Logger is replaced with zap's no-op
	// logger.
	Logger *zap.Logger

	// DeferredCap bounds the out-of-causal-order change buffer; see
	// internal/oplog.New.
	DeferredCap int
}

func (o Options) resolvePeer() id.PeerID {
	if o.Peer != 0 {
		return o.Peer
	}
	u := uuid.New()
	return id.PeerID(binary.BigEndian.Uint64(u[:8]))
}
