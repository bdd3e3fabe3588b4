package mesh

import (
	"github.com/chazu/brepmesh/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// Node is a discretized point.
type Node struct {
	P          v3.Vec
	Movability Movability
}

// Edge is a mesh edge between two nodes. A is always the smaller index.
type Edge struct {
	A, B       int
	Movability Movability
	Domain     topo.ID
}

type nodePair [2]int

func pairOf(a, b int) nodePair {
	if a > b {
		a, b = b, a
	}
	return nodePair{a, b}
}

// Store is the node/edge/triangle pool. Edges are unique per unordered node
// pair and live triangles are unique per cyclic edge triple. A Store is not
// safe for concurrent use; ShapeMesh serializes access.
type Store struct {
	nodes     []Node
	edges     []Edge
	edgeIndex map[nodePair]int
	triangles []Triangle
	buckets   map[int][]int
	deleted   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		edgeIndex: make(map[nodePair]int),
		buckets:   make(map[int][]int),
	}
}

// AddNode appends a node and returns its index.
func (s *Store) AddNode(p v3.Vec, m Movability) int {
	s.nodes = append(s.nodes, Node{P: p, Movability: m})
	return len(s.nodes) - 1
}

// AddEdge returns the edge joining a and b, creating it when needed, and
// whether it runs from a to b. An existing edge keeps its movability unless
// the new one is more constrained.
func (s *Store) AddEdge(a, b int, m Movability, domain topo.ID) (int, bool) {
	key := pairOf(a, b)
	forward := a <= b
	if i, ok := s.edgeIndex[key]; ok {
		if m > s.edges[i].Movability && m != Deleted {
			s.edges[i].Movability = m
			s.edges[i].Domain = domain
		}
		return i, forward
	}
	s.edges = append(s.edges, Edge{A: key[0], B: key[1], Movability: m, Domain: domain})
	i := len(s.edges) - 1
	s.edgeIndex[key] = i
	return i, forward
}

// FindEdge returns the edge joining a and b.
func (s *Store) FindEdge(a, b int) (int, bool) {
	i, ok := s.edgeIndex[pairOf(a, b)]
	return i, ok
}

// AddTriangle inserts t unless an equal live triangle exists, in which case
// the existing index is returned with added == false. A tombstone is stored
// as is and counted as deleted.
func (s *Store) AddTriangle(t Triangle) (int, bool) {
	if t.Movability == Deleted {
		s.triangles = append(s.triangles, t)
		s.deleted++
		return len(s.triangles) - 1, true
	}
	if i, ok := s.Find(t); ok {
		return i, false
	}
	s.triangles = append(s.triangles, t)
	i := len(s.triangles) - 1
	h := t.Hash()
	s.buckets[h] = append(s.buckets[h], i)
	return i, true
}

// AddTriangleNodes builds the edges of the triangle a, b, c and inserts it.
func (s *Store) AddTriangleNodes(a, b, c int, m Movability, domain topo.ID) (int, bool) {
	var t Triangle
	t.Movability = m
	t.Domain = domain
	nodes := [3]int{a, b, c}
	for k := 0; k < 3; k++ {
		t.Edges[k], t.Orientations[k] = s.AddEdge(nodes[k], nodes[(k+1)%3], Free, domain)
	}
	return s.AddTriangle(t)
}

// Find returns the live triangle equal to t.
func (s *Store) Find(t Triangle) (int, bool) {
	for _, i := range s.buckets[t.Hash()] {
		if s.triangles[i].IsEqual(t) {
			return i, true
		}
	}
	return -1, false
}

// SetMovability is the only mutation allowed on a stored triangle. Setting
// Deleted turns it into a tombstone.
func (s *Store) SetMovability(i int, m Movability) {
	t := &s.triangles[i]
	if t.Movability == m {
		return
	}
	if m == Deleted {
		s.deleted++
	} else if t.Movability == Deleted {
		s.deleted--
	}
	t.Movability = m
}

// TriangleNodes returns the corner nodes of triangle i in traversal order.
func (s *Store) TriangleNodes(i int) [3]int {
	t := s.triangles[i]
	var out [3]int
	for k := 0; k < 3; k++ {
		e := s.edges[t.Edges[k]]
		if t.Orientations[k] {
			out[k] = e.A
		} else {
			out[k] = e.B
		}
	}
	return out
}

func (s *Store) Node(i int) Node         { return s.nodes[i] }
func (s *Store) Edge(i int) Edge         { return s.edges[i] }
func (s *Store) Triangle(i int) Triangle { return s.triangles[i] }
func (s *Store) NodeCount() int          { return len(s.nodes) }
func (s *Store) EdgeCount() int          { return len(s.edges) }
func (s *Store) TriangleCount() int      { return len(s.triangles) }

// DeletedCount is the number of tombstoned triangles.
func (s *Store) DeletedCount() int { return s.deleted }

// EdgeTriangles returns the live triangles using edge e.
func (s *Store) EdgeTriangles(e int) []int {
	var out []int
	for i, t := range s.triangles {
		if t.Movability == Deleted {
			continue
		}
		if t.Edges[0] == e || t.Edges[1] == e || t.Edges[2] == e {
			out = append(out, i)
		}
	}
	return out
}

func (s *Store) checkNode(i int) error {
	if i < 0 || i >= len(s.nodes) {
		return errors.Errorf("mesh: node %d out of range [0,%d)", i, len(s.nodes))
	}
	return nil
}
