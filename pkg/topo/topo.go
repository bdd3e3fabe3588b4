// Package topo defines the boundary representation consumed by the mesher.
// Shapes are built by a geometry kernel and only queried here: the mesher
// never constructs topology, it evaluates curves and surfaces, walks wires
// and reads edge/face adjacency.
//
// The entity kinds form a closed set (vertex, edge, face). The Entity
// interface carries an unexported marker method so no other package can add
// kinds.
package topo

import (
	"fmt"
	"sync/atomic"
)

// ID is the topological identity of an entity. Two entities with the same
// ID are the same entity even when they are different Go values (a moved
// copy of a shape keeps its IDs).
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// HashID derives a stable identifier from a sequence of names.
func HashID(parts ...string) ID {
	h := newHasher()
	for _, p := range parts {
		h.str(p)
	}
	return ID(h.sum())
}

// IDGen hands out sequential identifiers within a namespace. Kernels use one
// generator per shape so that rebuilding the same shape yields the same IDs.
type IDGen struct {
	base ID
	next atomic.Uint64
}

// NewIDGen returns a generator whose IDs are derived from base.
func NewIDGen(base ID) *IDGen {
	return &IDGen{base: base}
}

// Next returns the next identifier.
func (g *IDGen) Next() ID {
	n := g.next.Add(1)
	h := newHasher()
	h.u64(uint64(g.base), n)
	return ID(h.sum())
}

// Kind enumerates the entity kinds the mesher understands.
type Kind int

const (
	KindVertex Kind = iota
	KindEdge
	KindFace
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindFace:
		return "face"
	default:
		return "unknown"
	}
}

// Entity is implemented by *Vertex, *Edge and *Face only.
type Entity interface {
	ID() ID
	Kind() Kind
	// Fingerprint changes whenever the entity's geometry changes.
	Fingerprint() uint64
	entity() // marker method restricting implementations to this package
}
