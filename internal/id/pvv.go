package id

// PersistentVV is a structurally-shared version vector for long-lived
// snapshots (e.g. the post-change version vector each OpLog change
// caches). Cloning is O(1): it copies a root pointer, not the
// map. Mutation path-copies only the nodes on the path to the changed key,
// leaving prior snapshots' nodes untouched.
//
// This is a small hand-rolled persistent AVL tree: the pack carries no
// persistent-map library, and the spec calls out "structurally shared" as
// a property of the data structure itself, not an ambient concern a
// third-party dependency would own (see DESIGN.md).
type PersistentVV struct {
	root *pvvNode
}

type pvvNode struct {
	peer        PeerID
	end         int32
	left, right *pvvNode
	height      int8
}

// NewPersistentVV returns an empty persistent version vector.
func NewPersistentVV() PersistentVV { return PersistentVV{} }

// Get returns the exclusive-end counter for peer, 0 if unseen.
func (p PersistentVV) Get(peer PeerID) int32 {
	n := p.root
	for n != nil {
		switch {
		case peer == n.peer:
			return n.end
		case peer < n.peer:
			n = n.left
		default:
			n = n.right
		}
	}
	return 0
}

// Set returns a new PersistentVV with peer mapped to end, sharing all
// unaffected subtrees with p.
func (p PersistentVV) Set(peer PeerID, end int32) PersistentVV {
	return PersistentVV{root: pvvInsert(p.root, peer, end)}
}

// ToVV materializes a mutable copy (used when handing the vector to code
// that wants in-place Merge/Diff operations).
func (p PersistentVV) ToVV() VV {
	out := NewVV()
	p.each(func(peer PeerID, end int32) { out[peer] = end })
	return out
}

// FromVV builds a PersistentVV snapshot from a mutable VV.
func FromVV(v VV) PersistentVV {
	out := NewPersistentVV()
	for peer, end := range v {
		out = out.Set(peer, end)
	}
	return out
}

func (p PersistentVV) each(fn func(peer PeerID, end int32)) {
	var walk func(*pvvNode)
	walk = func(n *pvvNode) {
		if n == nil {
			return
		}
		walk(n.left)
		fn(n.peer, n.end)
		walk(n.right)
	}
	walk(p.root)
}

func height(n *pvvNode) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func newNode(peer PeerID, end int32, left, right *pvvNode) *pvvNode {
	h := height(left)
	if hr := height(right); hr > h {
		h = hr
	}
	return &pvvNode{peer: peer, end: end, left: left, right: right, height: h + 1}
}

func balanceFactor(n *pvvNode) int {
	return int(height(n.left)) - int(height(n.right))
}

func rotateRight(n *pvvNode) *pvvNode {
	l := n.left
	return newNode(l.peer, l.end, l.left, newNode(n.peer, n.end, l.right, n.right))
}

func rotateLeft(n *pvvNode) *pvvNode {
	r := n.right
	return newNode(r.peer, r.end, newNode(n.peer, n.end, n.left, r.left), r.right)
}

func rebalance(n *pvvNode) *pvvNode {
	bf := balanceFactor(n)
	switch {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n = newNode(n.peer, n.end, rotateLeft(n.left), n.right)
		}
		return rotateRight(n)
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n = newNode(n.peer, n.end, n.left, rotateRight(n.right))
		}
		return rotateLeft(n)
	default:
		return n
	}
}

func pvvInsert(n *pvvNode, peer PeerID, end int32) *pvvNode {
	if n == nil {
		return newNode(peer, end, nil, nil)
	}
	switch {
	case peer == n.peer:
		return newNode(peer, end, n.left, n.right)
	case peer < n.peer:
		return rebalance(newNode(n.peer, n.end, pvvInsert(n.left, peer, end), n.right))
	default:
		return rebalance(newNode(n.peer, n.end, n.left, pvvInsert(n.right, peer, end)))
	}
}
