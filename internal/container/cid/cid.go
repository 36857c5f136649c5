// Package cid implements ContainerID: the identity of one container
// (root-by-name or normal-by-originating-op) within a document's container
// tree.
package cid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/id"
)

// Type tags the four container kinds the engine supports.
type Type uint8

const (
	TypeText Type = iota
	TypeList
	TypeMap
	TypeMovableList
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "Text"
	case TypeList:
		return "List"
	case TypeMap:
		return "Map"
	case TypeMovableList:
		return "MovableList"
	default:
		crdterr.Fatalf("cid: unreachable container type %d", t)
		return ""
	}
}

func parseType(s string) (Type, bool) {
	switch s {
	case "Text":
		return TypeText, true
	case "List":
		return TypeList, true
	case "Map":
		return TypeMap, true
	case "MovableList":
		return TypeMovableList, true
	default:
		return 0, false
	}
}

// ContainerID identifies a container: either a named root attached directly
// to the document, or a "normal" container whose identity is the op that
// created it.
type ContainerID struct {
	isRoot bool
	name   string  // set when isRoot
	peer   id.PeerID // set when !isRoot
	ctr    int32
	typ    Type
}

// Root builds a root container id.
func Root(name string, typ Type) ContainerID {
	return ContainerID{isRoot: true, name: name, typ: typ}
}

// Normal builds a container id rooted at the op that created it.
func Normal(origin id.ID, typ Type) ContainerID {
	return ContainerID{isRoot: false, peer: origin.Peer, ctr: origin.Counter, typ: typ}
}

func (c ContainerID) IsRoot() bool   { return c.isRoot }
func (c ContainerID) Name() string   { return c.name }
func (c ContainerID) Origin() id.ID  { return id.ID{Peer: c.peer, Counter: c.ctr} }
func (c ContainerID) Type() Type     { return c.typ }

// String renders the stable "cid:<disc>:<name-or-id>:<type>" form.
func (c ContainerID) String() string {
	if c.isRoot {
		return fmt.Sprintf("cid:root:%s:%s", c.name, c.typ)
	}
	return fmt.Sprintf("cid:normal:%d@%d:%s", c.peer, c.ctr, c.typ)
}

// Parse decodes the String() form back into a ContainerID.
func Parse(s string) (ContainerID, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0] != "cid" {
		return ContainerID{}, crdterr.New(crdterr.Decode, "invalid container id %q", s)
	}
	typ, ok := parseType(parts[3])
	if !ok {
		return ContainerID{}, crdterr.New(crdterr.Decode, "unknown container type in id %q", s)
	}
	switch parts[1] {
	case "root":
		return Root(parts[2], typ), nil
	case "normal":
		originParts := strings.SplitN(parts[2], "@", 2)
		if len(originParts) != 2 {
			return ContainerID{}, crdterr.New(crdterr.Decode, "invalid origin in container id %q", s)
		}
		peer, err1 := strconv.ParseUint(originParts[0], 10, 64)
		ctr, err2 := strconv.ParseInt(originParts[1], 10, 32)
		if err1 != nil || err2 != nil {
			return ContainerID{}, crdterr.New(crdterr.Decode, "malformed origin in container id %q", s)
		}
		return Normal(id.ID{Peer: id.PeerID(peer), Counter: int32(ctr)}, typ), nil
	default:
		return ContainerID{}, crdterr.New(crdterr.Decode, "unknown container id discriminant in %q", s)
	}
}
