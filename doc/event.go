package doc

import (
	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/id"
	"github.com/Polqt/crdtcollab/internal/state"
)

// Origin distinguishes a locally-authored commit from one that arrived via
// Import/DecodeOpLog integration, per §6.
type Origin uint8

const (
	OriginLocal Origin = iota
	OriginRemote
)

// Event is delivered synchronously to every subscriber of ContainerID on
// commit or import, carrying enough to replay the edit against a mirrored
// view without re-reading the whole container.
type Event struct {
	ContainerID cid.ContainerID
	OldVersion  id.VV
	NewVersion  id.VV
	Diff        state.Diff
	Origin      Origin
}

type subEntry struct {
	token int
	fn    func(Event)
}

// Subscribe registers fn to be called, in registration order, every time
// containerID's content changes. The returned func removes it; calling it
// more than once is a no-op.
func (d *Document) Subscribe(containerID cid.ContainerID, fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := containerID.String()
	d.subToken++
	token := d.subToken
	d.subs[key] = append(d.subs[key], subEntry{token: token, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.subs[key]
		for i, e := range entries {
			if e.token == token {
				d.subs[key] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// notify fans e out to ContainerID's subscribers. Callers must hold d.mu.
func (d *Document) notify(e Event) {
	for _, e2 := range d.subs[e.ContainerID.String()] {
		e2.fn(e)
	}
}
