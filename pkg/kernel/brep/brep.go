// Package brep implements the kernel.Kernel interface with exact analytic
// boundary representations: planar, cylindrical and spherical faces bounded
// by line and circle edges, with pcurves on every coedge.
//
// Solids follow the sdfx conventions used elsewhere in the repository: a box
// has its minimum corner at the origin, cylinders, tubes and spheres are
// centered on the origin with Z as their axis.
package brep

import (
	"math"

	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Kernel builds analytic shapes.
type Kernel struct{}

// New returns a new Kernel.
func New() *Kernel {
	return &Kernel{}
}

// Translate moves a shape by (x, y, z). Entity IDs are kept.
func (k *Kernel) Translate(s *topo.Shape, x, y, z float64) *topo.Shape {
	return s.Transformed(sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a shape by Euler angles (degrees) around X, Y, Z axes.
func (k *Kernel) Rotate(s *topo.Shape, x, y, z float64) *topo.Shape {
	return s.Transformed(RotationMatrix(x, y, z))
}

// RotationMatrix is the rotation applied by Rotate: X first, then Y, then Z.
func RotationMatrix(x, y, z float64) sdf.M44 {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0
	return sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
}

var (
	axisX = v3.Vec{X: 1}
	axisY = v3.Vec{Y: 1}
	axisZ = v3.Vec{Z: 1}
)

// builder hands out entity IDs for one shape and shares vertices and line
// edges between the faces that meet on them.
type builder struct {
	ids   *topo.IDGen
	lines map[[2]topo.ID]*topo.Edge
}

func newBuilder(shape topo.ID) *builder {
	return &builder{ids: topo.NewIDGen(shape), lines: make(map[[2]topo.ID]*topo.Edge)}
}

func (b *builder) vertex(p v3.Vec) *topo.Vertex {
	return topo.NewVertex(b.ids.Next(), p)
}

// line returns the straight edge between two vertices, creating it the
// first time either direction is asked for.
func (b *builder) line(from, to *topo.Vertex) *topo.Edge {
	key := [2]topo.ID{from.ID(), to.ID()}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if e, ok := b.lines[key]; ok {
		return e
	}
	c, length := topo.NewSegmentLine(from.Point, to.Point)
	e := topo.NewEdge(b.ids.Next(), c, 0, length, from, to)
	b.lines[key] = e
	return e
}

// planarFace bounds a plane by the closed polygon through corners, which
// must run counter-clockwise around the plane normal.
func (b *builder) planarFace(plane topo.Plane, corners []*topo.Vertex) *topo.Face {
	var w topo.Wire
	for i, from := range corners {
		to := corners[(i+1)%len(corners)]
		e := b.line(from, to)
		w.Coedges = append(w.Coedges, topo.Coedge{
			Edge:     e,
			Reversed: e.Start.ID() != from.ID(),
			PCurve:   topo.PlanarPCurve{Curve: e.Curve, Plane: plane},
		})
	}
	return topo.NewFace(b.ids.Next(), plane, w)
}
