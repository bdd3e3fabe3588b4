package mesh

import (
	"sort"
	"sync"

	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// Status is the meshing state of a shape.
type Status int

const (
	Unmeshed Status = iota
	EdgesDiscretized
	FacesTriangulated
	Clean
)

func (s Status) String() string {
	switch s {
	case Unmeshed:
		return "unmeshed"
	case EdgesDiscretized:
		return "edges-discretized"
	case FacesTriangulated:
		return "faces-triangulated"
	case Clean:
		return "clean"
	default:
		return "unknown"
	}
}

// Polygon is the discretization of one topological edge: node indices and
// curve parameters in edge direction. Every face using the edge reads the
// same Polygon.
type Polygon struct {
	Edge        topo.ID
	Nodes       []int
	Params      []float64
	Deflection  float64
	Angle       float64
	Fingerprint uint64
	Truncated   bool
	// Version increases every time the edge is rediscretized.
	Version uint64
}

// Domain is the triangulated region of one face.
type Domain struct {
	Face        topo.ID
	Triangles   []int
	Deflection  float64
	Angle       float64
	Fingerprint uint64
	// Boundary identifies the polygon versions the domain was built on.
	Boundary  uint64
	Interior  int
	Truncated bool
}

// Stats summarizes a shape mesh.
type Stats struct {
	Nodes     int
	Edges     int
	Triangles int
	Deleted   int
	Polygons  int
	Domains   int
}

// ShapeMesh associates a Store with the topology of one shape. All methods
// are safe for concurrent use.
type ShapeMesh struct {
	mu          sync.RWMutex
	id          topo.ID
	store       *Store
	polygons    map[topo.ID]*Polygon
	vertexNodes map[topo.ID]int
	domains     map[topo.ID]*Domain
	bbox        sdf.Box3
	status      Status
	version     uint64
}

// NewShapeMesh returns an empty mesh for the shape with the given ID.
func NewShapeMesh(id topo.ID) *ShapeMesh {
	return &ShapeMesh{
		id:          id,
		store:       NewStore(),
		polygons:    make(map[topo.ID]*Polygon),
		vertexNodes: make(map[topo.ID]int),
		domains:     make(map[topo.ID]*Domain),
	}
}

func (m *ShapeMesh) ID() topo.ID { return m.id }

func (m *ShapeMesh) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *ShapeMesh) SetStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *ShapeMesh) BoundingBox() sdf.Box3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bbox
}

func (m *ShapeMesh) SetBoundingBox(b sdf.Box3) {
	m.mu.Lock()
	m.bbox = b
	m.mu.Unlock()
}

// VertexNode returns the node of a topological vertex, creating it on first
// use. The node moves when the vertex does.
func (m *ShapeMesh) VertexNode(v *topo.Vertex) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertexNode(v)
}

func (m *ShapeMesh) vertexNode(v *topo.Vertex) int {
	if i, ok := m.vertexNodes[v.ID()]; ok {
		m.store.nodes[i].P = v.Point
		return i
	}
	i := m.store.AddNode(v.Point, Fixed)
	m.vertexNodes[v.ID()] = i
	return i
}

// EdgeSample is one discretized point of an edge.
type EdgeSample struct {
	Param float64
	P     v3.Vec
}

// SetPolygon stores the discretization of e, replacing any previous one.
// The first and last samples are bound to the edge's vertex nodes; the
// others become new OnCurve nodes. A single sample yields a one-node
// polygon on the start vertex.
func (m *ShapeMesh) SetPolygon(e *topo.Edge, samples []EdgeSample, meta Polygon) *Polygon {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	p := &Polygon{
		Edge:        e.ID(),
		Deflection:  meta.Deflection,
		Angle:       meta.Angle,
		Fingerprint: meta.Fingerprint,
		Truncated:   meta.Truncated,
		Version:     m.version,
	}
	for i, s := range samples {
		var n int
		switch {
		case i == 0:
			n = m.vertexNode(e.Start)
		case i == len(samples)-1:
			n = m.vertexNode(e.End)
		default:
			n = m.store.AddNode(s.P, OnCurve)
		}
		p.Nodes = append(p.Nodes, n)
		p.Params = append(p.Params, s.Param)
	}
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i-1] != p.Nodes[i] {
			m.store.AddEdge(p.Nodes[i-1], p.Nodes[i], OnCurve, e.ID())
		}
	}
	m.polygons[e.ID()] = p
	return p
}

// Polygon returns the discretization of an edge.
func (m *ShapeMesh) Polygon(edge topo.ID) (*Polygon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.polygons[edge]
	return p, ok
}

// RemovePolygon drops the discretization of an edge.
func (m *ShapeMesh) RemovePolygon(edge topo.ID) {
	m.mu.Lock()
	delete(m.polygons, edge)
	m.mu.Unlock()
}

// EdgePolyline returns the points of an edge's discretization.
func (m *ShapeMesh) EdgePolyline(edge topo.ID) []v3.Vec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.polygons[edge]
	if !ok {
		return nil
	}
	return lo.Map(p.Nodes, func(n int, _ int) v3.Vec { return m.store.nodes[n].P })
}

// DomainInput is a face triangulation ready to be committed. Triangle
// corners index Boundary first, then Interior: corner k < len(Boundary)
// is node Boundary[k], otherwise Interior[k-len(Boundary)].
type DomainInput struct {
	Boundary  []int
	Interior  []v3.Vec
	Triangles [][3]int
}

// ReplaceDomain tombstones the current triangles of face and inserts the
// new ones. Triangles whose corners collapse onto repeated nodes are
// dropped. It returns the number of triangles inserted.
func (m *ShapeMesh) ReplaceDomain(face topo.ID, in DomainInput, meta Domain) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range in.Boundary {
		if err := m.store.checkNode(n); err != nil {
			return 0, err
		}
	}
	if old, ok := m.domains[face]; ok {
		for _, t := range old.Triangles {
			m.store.SetMovability(t, Deleted)
		}
	}

	local := append([]int(nil), in.Boundary...)
	for _, p := range in.Interior {
		local = append(local, m.store.AddNode(p, OnSurface))
	}

	d := &Domain{
		Face:        face,
		Deflection:  meta.Deflection,
		Angle:       meta.Angle,
		Fingerprint: meta.Fingerprint,
		Boundary:    meta.Boundary,
		Interior:    len(in.Interior),
		Truncated:   meta.Truncated,
	}
	for _, tri := range in.Triangles {
		a, b, c := local[tri[0]], local[tri[1]], local[tri[2]]
		if a == b || b == c || a == c {
			continue
		}
		mov := Free
		for _, pair := range [3][2]int{{a, b}, {b, c}, {c, a}} {
			if e, ok := m.store.FindEdge(pair[0], pair[1]); ok && m.store.edges[e].Movability == OnCurve {
				mov = Frontier
			}
		}
		i, _ := m.store.AddTriangleNodes(a, b, c, mov, face)
		d.Triangles = append(d.Triangles, i)
	}
	m.domains[face] = d
	return len(d.Triangles), nil
}

// RemoveDomain tombstones the triangles of a face and forgets it.
func (m *ShapeMesh) RemoveDomain(face topo.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.domains[face]; ok {
		for _, t := range old.Triangles {
			m.store.SetMovability(t, Deleted)
		}
		delete(m.domains, face)
	}
}

// Domain returns a copy of a face's domain record.
func (m *ShapeMesh) Domain(face topo.ID) (Domain, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[face]
	if !ok {
		return Domain{}, false
	}
	out := *d
	out.Triangles = append([]int(nil), d.Triangles...)
	return out, true
}

// Faces returns the IDs of every meshed face in ascending order.
func (m *ShapeMesh) Faces() []topo.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.domains)
}

// Edges returns the IDs of every discretized edge in ascending order.
func (m *ShapeMesh) Edges() []topo.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.polygons)
}

// FaceTriangles returns the live triangles of a face as node triples.
func (m *ShapeMesh) FaceTriangles(face topo.ID) [][3]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[face]
	if !ok {
		return nil
	}
	var out [][3]int
	for _, t := range d.Triangles {
		if m.store.triangles[t].Movability == Deleted {
			continue
		}
		out = append(out, m.store.TriangleNodes(t))
	}
	return out
}

// Point returns the position of node i.
func (m *ShapeMesh) Point(i int) v3.Vec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.nodes[i].P
}

// View runs fn with read access to the underlying store.
func (m *ShapeMesh) View(fn func(s *Store)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.store)
}

// Stats returns pool sizes. Triangles counts live triangles only.
func (m *ShapeMesh) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Nodes:     m.store.NodeCount(),
		Edges:     m.store.EdgeCount(),
		Triangles: m.store.TriangleCount() - m.store.DeletedCount(),
		Deleted:   m.store.DeletedCount(),
		Polygons:  len(m.polygons),
		Domains:   len(m.domains),
	}
}

// Garbage is the fraction of stored triangles that are tombstones.
func (m *ShapeMesh) Garbage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.store.TriangleCount() == 0 {
		return 0
	}
	return float64(m.store.DeletedCount()) / float64(m.store.TriangleCount())
}

// Compact rebuilds the store without tombstones, edges no live triangle or
// polygon uses, and nodes nothing references. Every stored index is
// remapped, so indices obtained before Compact are invalid afterwards.
func (m *ShapeMesh) Compact() {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.store
	ns := NewStore()
	nodeMap := make(map[int]int)
	node := func(i int) int {
		if j, ok := nodeMap[i]; ok {
			return j
		}
		n := old.nodes[i]
		j := ns.AddNode(n.P, n.Movability)
		nodeMap[i] = j
		return j
	}

	for _, id := range sortedIDs(m.vertexNodes) {
		m.vertexNodes[id] = node(m.vertexNodes[id])
	}
	for _, id := range sortedIDs(m.polygons) {
		p := m.polygons[id]
		for i, n := range p.Nodes {
			p.Nodes[i] = node(n)
		}
		for i := 1; i < len(p.Nodes); i++ {
			if p.Nodes[i-1] != p.Nodes[i] {
				ns.AddEdge(p.Nodes[i-1], p.Nodes[i], OnCurve, id)
			}
		}
	}
	for _, id := range sortedIDs(m.domains) {
		d := m.domains[id]
		kept := d.Triangles[:0]
		for _, t := range d.Triangles {
			tri := old.triangles[t]
			if tri.Movability == Deleted {
				continue
			}
			c := old.TriangleNodes(t)
			i, _ := ns.AddTriangleNodes(node(c[0]), node(c[1]), node(c[2]), tri.Movability, tri.Domain)
			kept = append(kept, i)
		}
		d.Triangles = kept
	}
	m.store = ns
}

func sortedIDs[V any](m map[topo.ID]V) []topo.ID {
	ids := lo.Keys(m)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
