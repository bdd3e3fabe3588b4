// Package mesh holds discretized geometry: a pool of nodes, mesh edges and
// triangles with adjacency (Store), and the per-shape association of that
// pool with topological edges and faces (ShapeMesh).
package mesh

import "github.com/chazu/brepmesh/pkg/topo"

// Movability is the degree of freedom of a node, edge or triangle: what a
// later refinement pass may do with it.
type Movability uint8

const (
	// Free entities may be moved or removed.
	Free Movability = iota
	// InVolume entities live inside a solid region.
	InVolume
	// OnSurface entities are constrained to a face's surface.
	OnSurface
	// OnCurve entities are constrained to an edge's curve.
	OnCurve
	// Fixed entities never change (topological vertices).
	Fixed
	// Frontier triangles touch a face boundary.
	Frontier
	// Deleted marks a tombstone.
	Deleted
)

func (m Movability) String() string {
	switch m {
	case Free:
		return "free"
	case InVolume:
		return "in-volume"
	case OnSurface:
		return "on-surface"
	case OnCurve:
		return "on-curve"
	case Fixed:
		return "fixed"
	case Frontier:
		return "frontier"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Triangle is a cell of the store. Edges index the store's edge pool and
// Orientations[i] is true when Edges[i] is traversed from its first node to
// its second.
type Triangle struct {
	Edges        [3]int
	Orientations [3]bool
	Movability   Movability
	Domain       topo.ID
}

// Hash buckets triangles by the sum of their edge indices. Different
// triangles may collide; IsEqual decides.
func (t Triangle) Hash() int {
	return t.Edges[0] + t.Edges[1] + t.Edges[2]
}

// IsEqual reports whether t and o use the same three edges in the same
// cyclic order. Orientations are ignored. A deleted triangle equals nothing,
// itself included.
func (t Triangle) IsEqual(o Triangle) bool {
	if t.Movability == Deleted || o.Movability == Deleted {
		return false
	}
	e := t.Edges
	for r := 0; r < 3; r++ {
		if e[0] == o.Edges[r] && e[1] == o.Edges[(r+1)%3] && e[2] == o.Edges[(r+2)%3] {
			return true
		}
	}
	return false
}

// IsEqual is the free-function form of Triangle.IsEqual.
func IsEqual(t1, t2 Triangle) bool {
	return t1.IsEqual(t2)
}
