package oplog

import (
	"go.uber.org/zap"

	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
)

// OpLog is the document's causal history store: one append-only change list
// per peer, plus the running version vector/frontier those changes have
// produced.
type OpLog struct {
	peerLog  map[id.PeerID][]*Change
	vv       id.VV
	frontier id.Frontier

	deferred     []*Change // changes parked on a missing dep
	deferredCap  int
	logger       *zap.Logger
}

// New returns an empty OpLog. A nil logger is replaced with zap's no-op
// logger, matching the document facade's default.
func New(logger *zap.Logger, deferredCap int) *OpLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deferredCap <= 0 {
		deferredCap = 256
	}
	return &OpLog{
		peerLog:     make(map[id.PeerID][]*Change),
		vv:          id.NewVV(),
		frontier:    nil,
		deferredCap: deferredCap,
		logger:      logger,
	}
}

// VV returns the current version vector (not a copy; callers must not
// mutate it).
func (l *OpLog) VV() id.VV { return l.vv }

// Frontier returns the current frontier.
func (l *OpLog) Frontier() id.Frontier { return l.frontier.Clone() }

// NextCounter returns the next free counter for peer.
func (l *OpLog) NextCounter(peer id.PeerID) int32 { return l.vv.Get(peer) }

// GetLamport returns the Lamport of i, fatal if i has not been applied.
func (l *OpLog) GetLamport(i id.ID) id.Lamport {
	c := l.changeContaining(i)
	if c == nil {
		crdterr.Fatalf("oplog: GetLamport: id %v not present", i)
	}
	return c.LamportAt(i.Counter)
}

// GetVV returns the version vector immediately after i was applied.
func (l *OpLog) GetVV(i id.ID) id.VV {
	c := l.changeContaining(i)
	if c == nil {
		crdterr.Fatalf("oplog: GetVV: id %v not present", i)
	}
	vv := c.vvAfter.ToVV()
	vv[i.Peer] = i.Counter + 1
	return vv
}

// changeContaining finds the change block holding i, nil if absent.
func (l *OpLog) changeContaining(i id.ID) *Change {
	changes := l.peerLog[i.Peer]
	// Binary search over start counters.
	lo, hi := 0, len(changes)
	for lo < hi {
		mid := (lo + hi) / 2
		if changes[mid].Counter <= i.Counter {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return nil
	}
	c := changes[lo-1]
	if c.containsCounter(i.Counter) {
		return c
	}
	return nil
}

// Has reports whether i has already been integrated.
func (l *OpLog) Has(i id.ID) bool { return l.vv.Includes(i) }

// AppendLocal assigns counters/Lamport/deps for a freshly authored batch of
// ops from this peer, merges into the tail change when possible, and
// returns the new frontier. Ops must already be in counter order for a
// single peer (the Transaction is responsible for that).
func (l *OpLog) AppendLocal(peer id.PeerID, ops []Op) id.Frontier {
	if len(ops) == 0 {
		return l.frontier.Clone()
	}
	start := l.vv.Get(peer)
	lamport := l.nextLamport()
	deps := l.frontier.Clone()

	ch := &Change{
		Peer:      peer,
		Counter:   start,
		Lamport:   lamport,
		Timestamp: NowUnix(),
		Deps:      deps,
		Ops:       ops,
	}
	l.appendChange(ch, false)
	l.logger.Debug("appended local change", zap.Uint64("peer", uint64(peer)), zap.Int32("counter", ch.Counter), zap.Int32("len", ch.CounterLen()))
	return l.frontier.Clone()
}

// NextLamport returns the Lamport timestamp the next locally-authored
// change would receive, without mutating anything — the document's
// transaction guard uses this to assign per-atom Lamports to in-flight
// local edits ahead of the change actually being appended.
func (l *OpLog) NextLamport() id.Lamport { return l.nextLamport() }

func (l *OpLog) nextLamport() id.Lamport {
	var max id.Lamport
	first := true
	for _, dep := range l.frontier {
		lam := l.GetLamport(dep)
		if first || lam > max {
			max, first = lam, false
		}
	}
	if first {
		return 0
	}
	return max + 1
}

// IntegrateRemote integrates a remote change. If the change's deps are not
// all present, it is queued in the deferred buffer (if allowDefer) and
// IntegrateRemote returns (false, nil); every later successful
// IntegrateRemote re-scans the queue and integrates whatever has become
// satisfiable. If allowDefer is false and
// deps are missing, a CausalityError is returned.
func (l *OpLog) IntegrateRemote(ch *Change, allowDefer bool) (integrated bool, err error) {
	if l.Has(ch.FirstID()) {
		return true, nil // idempotent: already have it
	}
	if !l.depsSatisfied(ch) {
		if !allowDefer {
			return false, crdterr.New(crdterr.Causality, "missing deps for change %v", ch.FirstID())
		}
		l.deferChange(ch)
		return false, nil
	}
	if ch.Counter != l.vv.Get(ch.Peer) {
		crdterr.Fatalf("oplog: counter gap integrating %v: expected %d got %d", ch.FirstID(), l.vv.Get(ch.Peer), ch.Counter)
	}
	expectedLamport := l.lamportForDeps(ch.Deps)
	if ch.Lamport != expectedLamport {
		crdterr.Fatalf("oplog: lamport mismatch integrating %v: expected %d got %d", ch.FirstID(), expectedLamport, ch.Lamport)
	}
	l.appendChange(ch, true)
	l.drainDeferredOnce()
	return true, nil
}

func (l *OpLog) lamportForDeps(deps id.Frontier) id.Lamport {
	var max id.Lamport
	first := true
	for _, dep := range deps {
		lam := l.GetLamport(dep)
		if first || lam > max {
			max, first = lam, false
		}
	}
	if first {
		return 0
	}
	return max + 1
}

func (l *OpLog) depsSatisfied(ch *Change) bool {
	for _, dep := range ch.Deps {
		if !l.Has(dep) {
			return false
		}
	}
	return true
}

// appendChange performs the actual storage/VV/frontier update once deps and
// counters are verified. remote distinguishes only for logging.
func (l *OpLog) appendChange(ch *Change, remote bool) {
	// Merge into the peer's tail change when adjacent and content-mergeable.
	tail := l.peerLog[ch.Peer]
	if n := len(tail); n > 0 {
		last := tail[n-1]
		onlyDepIsLast := len(ch.Deps) == 1 && ch.Deps[0] == (id.ID{Peer: last.Peer, Counter: last.End() - 1})
		if last.End() == ch.Counter && onlyDepIsLast && tryMergeTail(last, ch) {
			l.finishAppend(last, ch)
			return
		}
	}
	ch.vvAfter = id.FromVV(l.VVOfFrontier(ch.Deps).Merge(id.VV{ch.Peer: ch.End()}))
	l.peerLog[ch.Peer] = append(l.peerLog[ch.Peer], ch)
	l.vv.SetIfGreater(ch.Peer, ch.End())
	l.advanceFrontier(ch)
	if remote {
		l.logger.Debug("integrated remote change", zap.Uint64("peer", uint64(ch.Peer)), zap.Int32("counter", ch.Counter), zap.Int32("len", ch.CounterLen()))
	}
}

// tryMergeTail attempts to fold ch's ops onto last in place; returns false
// (no mutation) if the trailing/leading ops aren't content-mergeable.
func tryMergeTail(last, ch *Change) bool {
	if len(last.Ops) == 0 || len(ch.Ops) == 0 {
		return false
	}
	lastOp := last.Ops[len(last.Ops)-1]
	firstOp := ch.Ops[0]
	if !lastOp.Content.Mergeable(firstOp.Content) {
		return false
	}
	merged := append([]Op(nil), last.Ops...)
	merged[len(merged)-1] = Op{Counter: lastOp.Counter, ContainerIdx: lastOp.ContainerIdx, Content: lastOp.Content.Merge(firstOp.Content)}
	merged = append(merged, ch.Ops[1:]...)
	last.Ops = merged
	return true
}

func (l *OpLog) finishAppend(last, ch *Change) {
	last.vvAfter = id.FromVV(l.VVOfFrontier(ch.Deps).Merge(id.VV{ch.Peer: last.End()}))
	l.vv.SetIfGreater(ch.Peer, last.End())
	l.advanceFrontier(ch)
}

// advanceFrontier drops any old frontier entries that are now dominated
// (i.e. were this change's deps) and adds the change's new tip.
func (l *OpLog) advanceFrontier(ch *Change) {
	next := make(id.Frontier, 0, len(l.frontier)+1)
	for _, f := range l.frontier {
		dominated := false
		for _, dep := range ch.Deps {
			if f == dep {
				dominated = true
				break
			}
		}
		if !dominated {
			next = append(next, f)
		}
	}
	next = append(next, id.ID{Peer: ch.Peer, Counter: ch.End() - 1})
	l.frontier = next
}

func (l *OpLog) deferChange(ch *Change) {
	if len(l.deferred) >= l.deferredCap {
		l.logger.Warn("deferred-change buffer full, dropping oldest", zap.Int("cap", l.deferredCap))
		l.deferred = l.deferred[1:]
	}
	l.deferred = append(l.deferred, ch)
	l.logger.Debug("deferred change pending deps", zap.Uint64("peer", uint64(ch.Peer)), zap.Int32("counter", ch.Counter))
}

// drainDeferredOnce rescans the deferred queue for newly-satisfiable
// changes after a successful integration. It loops until a full pass makes
// no progress.
func (l *OpLog) drainDeferredOnce() {
	for {
		progressed := false
		remaining := l.deferred[:0:0]
		for _, ch := range l.deferred {
			if l.depsSatisfied(ch) {
				l.appendChange(ch, true)
				progressed = true
			} else {
				remaining = append(remaining, ch)
			}
		}
		l.deferred = remaining
		if !progressed {
			return
		}
	}
}

// Changes returns the ordered change list for peer (read-only).
func (l *OpLog) Changes(peer id.PeerID) []*Change { return l.peerLog[peer] }

// Peers returns every peer with at least one change.
func (l *OpLog) Peers() []id.PeerID {
	out := make([]id.PeerID, 0, len(l.peerLog))
	for p := range l.peerLog {
		out = append(out, p)
	}
	return out
}
