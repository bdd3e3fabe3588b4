package topo

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultTolerance is the vertex tolerance used when a kernel does not set one.
const DefaultTolerance = 1e-7

// Vertex is a topological point.
type Vertex struct {
	id        ID
	Point     v3.Vec
	Tolerance float64
}

// NewVertex returns a vertex at p with the default tolerance.
func NewVertex(id ID, p v3.Vec) *Vertex {
	return &Vertex{id: id, Point: p, Tolerance: DefaultTolerance}
}

func (v *Vertex) ID() ID     { return v.id }
func (v *Vertex) Kind() Kind { return KindVertex }
func (v *Vertex) entity()    {}

func (v *Vertex) Fingerprint() uint64 {
	return newHasher().vec(v.Point).float(v.Tolerance).sum()
}

// Edge is a bounded piece of a curve between two vertices. Start is at
// parameter First and End at parameter Last. A closed edge (circle) has the
// same start and end vertex.
type Edge struct {
	id          ID
	Curve       Curve
	First, Last float64
	Start, End  *Vertex
	// Degenerate marks an edge whose curve collapses to a point.
	Degenerate bool
}

// NewEdge returns an edge over curve between first and last.
func NewEdge(id ID, c Curve, first, last float64, start, end *Vertex) *Edge {
	return &Edge{id: id, Curve: c, First: first, Last: last, Start: start, End: end}
}

// NewDegenerateEdge returns an edge collapsed onto v over [first, last].
func NewDegenerateEdge(id ID, v *Vertex, first, last float64) *Edge {
	return &Edge{
		id:         id,
		Curve:      DegenerateCurve{Point: v.Point},
		First:      first,
		Last:       last,
		Start:      v,
		End:        v,
		Degenerate: true,
	}
}

func (e *Edge) ID() ID     { return e.id }
func (e *Edge) Kind() Kind { return KindEdge }
func (e *Edge) entity()    {}

// Closed reports whether the edge starts and ends on the same vertex.
func (e *Edge) Closed() bool {
	return e.Start.id == e.End.id
}

func (e *Edge) Fingerprint() uint64 {
	return newHasher().
		u64(e.Curve.Fingerprint(), e.Start.Fingerprint(), e.End.Fingerprint()).
		float(e.First, e.Last).
		boolean(e.Degenerate).
		sum()
}

// Coedge is the use of an edge by one face wire. The pcurve gives the edge
// in the face's parameter space; a seam edge is used twice by the same face
// with two different pcurves.
type Coedge struct {
	Edge     *Edge
	Reversed bool
	PCurve   PCurve
}

// StartParam is the edge parameter where the coedge begins.
func (c Coedge) StartParam() float64 {
	if c.Reversed {
		return c.Edge.Last
	}
	return c.Edge.First
}

// EndParam is the edge parameter where the coedge ends.
func (c Coedge) EndParam() float64 {
	if c.Reversed {
		return c.Edge.First
	}
	return c.Edge.Last
}

// StartVertex is the vertex where the coedge begins.
func (c Coedge) StartVertex() *Vertex {
	if c.Reversed {
		return c.Edge.End
	}
	return c.Edge.Start
}

// EndVertex is the vertex where the coedge ends.
func (c Coedge) EndVertex() *Vertex {
	if c.Reversed {
		return c.Edge.Start
	}
	return c.Edge.End
}

func (c Coedge) fingerprint(h *hasher) {
	h.u64(uint64(c.Edge.id), c.PCurve.Fingerprint()).boolean(c.Reversed)
}

// Wire is a closed loop of coedges.
type Wire struct {
	Coedges []Coedge
}

// Face is a bounded region of a surface. The outer wire runs
// counter-clockwise in (u, v) and inner wires clockwise. Reversed flips the
// material side relative to the surface normal.
type Face struct {
	id       ID
	Surface  Surface
	Outer    Wire
	Inner    []Wire
	Reversed bool
}

// NewFace returns a face bounded by outer and optional holes.
func NewFace(id ID, s Surface, outer Wire, inner ...Wire) *Face {
	return &Face{id: id, Surface: s, Outer: outer, Inner: inner}
}

func (f *Face) ID() ID     { return f.id }
func (f *Face) Kind() Kind { return KindFace }
func (f *Face) entity()    {}

// Wires returns the outer wire followed by the inner ones.
func (f *Face) Wires() []Wire {
	return append([]Wire{f.Outer}, f.Inner...)
}

// Edges returns the distinct edges bounding the face in wire order.
func (f *Face) Edges() []*Edge {
	seen := make(map[ID]bool)
	var edges []*Edge
	for _, w := range f.Wires() {
		for _, c := range w.Coedges {
			if !seen[c.Edge.id] {
				seen[c.Edge.id] = true
				edges = append(edges, c.Edge)
			}
		}
	}
	return edges
}

func (f *Face) Fingerprint() uint64 {
	h := newHasher().u64(f.Surface.Fingerprint()).boolean(f.Reversed)
	for _, w := range f.Wires() {
		h.str("wire")
		for _, c := range w.Coedges {
			c.fingerprint(h)
		}
	}
	return h.sum()
}

// Shape is a collection of faces, plus edges that belong to no face.
type Shape struct {
	id        ID
	Name      string
	Faces     []*Face
	FreeEdges []*Edge
}

// NewShape returns a shape over faces.
func NewShape(id ID, name string, faces ...*Face) *Shape {
	return &Shape{id: id, Name: name, Faces: faces}
}

// ID returns the shape's topological hash.
func (s *Shape) ID() ID { return s.id }

// Edges returns every distinct edge: face edges in face order, then free
// edges.
func (s *Shape) Edges() []*Edge {
	seen := make(map[ID]bool)
	var edges []*Edge
	add := func(e *Edge) {
		if !seen[e.id] {
			seen[e.id] = true
			edges = append(edges, e)
		}
	}
	for _, f := range s.Faces {
		for _, e := range f.Edges() {
			add(e)
		}
	}
	for _, e := range s.FreeEdges {
		add(e)
	}
	return edges
}

// Vertices returns every distinct vertex reachable through the edges.
func (s *Shape) Vertices() []*Vertex {
	seen := make(map[ID]bool)
	var verts []*Vertex
	for _, e := range s.Edges() {
		for _, v := range []*Vertex{e.Start, e.End} {
			if !seen[v.id] {
				seen[v.id] = true
				verts = append(verts, v)
			}
		}
	}
	return verts
}

// EdgeFaces maps each edge to the faces using it.
func (s *Shape) EdgeFaces() map[ID][]*Face {
	adj := make(map[ID][]*Face)
	for _, f := range s.Faces {
		for _, e := range f.Edges() {
			adj[e.id] = append(adj[e.id], f)
		}
	}
	return adj
}

// Transformed returns a deep copy of the shape placed by m. IDs are kept,
// geometry (and therefore fingerprints) changes.
func (s *Shape) Transformed(m sdf.M44) *Shape {
	verts := make(map[ID]*Vertex)
	vertex := func(v *Vertex) *Vertex {
		if nv, ok := verts[v.id]; ok {
			return nv
		}
		nv := &Vertex{id: v.id, Point: m.MulPosition(v.Point), Tolerance: v.Tolerance}
		verts[v.id] = nv
		return nv
	}
	edges := make(map[ID]*Edge)
	edge := func(e *Edge) *Edge {
		if ne, ok := edges[e.id]; ok {
			return ne
		}
		ne := &Edge{
			id:         e.id,
			Curve:      e.Curve.Transform(m),
			First:      e.First,
			Last:       e.Last,
			Start:      vertex(e.Start),
			End:        vertex(e.End),
			Degenerate: e.Degenerate,
		}
		edges[e.id] = ne
		return ne
	}
	wire := func(w Wire) Wire {
		out := Wire{Coedges: make([]Coedge, len(w.Coedges))}
		for i, c := range w.Coedges {
			out.Coedges[i] = Coedge{Edge: edge(c.Edge), Reversed: c.Reversed, PCurve: c.PCurve.Transform(m)}
		}
		return out
	}

	out := &Shape{id: s.id, Name: s.Name}
	for _, f := range s.Faces {
		nf := &Face{id: f.id, Surface: f.Surface.Transform(m), Outer: wire(f.Outer), Reversed: f.Reversed}
		for _, w := range f.Inner {
			nf.Inner = append(nf.Inner, wire(w))
		}
		out.Faces = append(out.Faces, nf)
	}
	for _, e := range s.FreeEdges {
		out.FreeEdges = append(out.FreeEdges, edge(e))
	}
	return out
}
