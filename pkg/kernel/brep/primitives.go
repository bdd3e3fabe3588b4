package brep

import (
	"math"

	"github.com/chazu/brepmesh/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

func positive(kind string, dims ...float64) error {
	for _, d := range dims {
		if !(d > 0) || math.IsInf(d, 0) {
			return errors.Errorf("brep: %s dimensions must be positive, got %v", kind, dims)
		}
	}
	return nil
}

// Box creates a box with the given dimensions and its minimum corner at the
// origin. It has 8 vertices, 12 line edges and 6 planar faces.
func (k *Kernel) Box(name string, x, y, z float64) (*topo.Shape, error) {
	if err := positive("box", x, y, z); err != nil {
		return nil, err
	}
	id := topo.HashID("box", name)
	b := newBuilder(id)

	var corners [2][2][2]*topo.Vertex
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for l := 0; l < 2; l++ {
				corners[i][j][l] = b.vertex(v3.Vec{X: float64(i) * x, Y: float64(j) * y, Z: float64(l) * z})
			}
		}
	}
	at := func(c [3]int) *topo.Vertex { return corners[c[0]][c[1]][c[2]] }
	add := func(p, q [3]int) [3]int { return [3]int{p[0] + q[0], p[1] + q[1], p[2] + q[2]} }
	dir := func(c [3]int) v3.Vec { return v3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])} }

	// Each face is spanned from corner p by a then b, with a x b pointing out.
	sides := []struct{ p, a, b [3]int }{
		{p: [3]int{0, 0, 0}, a: [3]int{0, 1, 0}, b: [3]int{1, 0, 0}}, // bottom
		{p: [3]int{0, 0, 1}, a: [3]int{1, 0, 0}, b: [3]int{0, 1, 0}}, // top
		{p: [3]int{0, 0, 0}, a: [3]int{1, 0, 0}, b: [3]int{0, 0, 1}}, // front
		{p: [3]int{0, 1, 0}, a: [3]int{0, 0, 1}, b: [3]int{1, 0, 0}}, // back
		{p: [3]int{0, 0, 0}, a: [3]int{0, 0, 1}, b: [3]int{0, 1, 0}}, // left
		{p: [3]int{1, 0, 0}, a: [3]int{0, 1, 0}, b: [3]int{0, 0, 1}}, // right
	}
	var faces []*topo.Face
	for _, s := range sides {
		origin := at(s.p).Point
		plane := topo.Plane{Frame: topo.NewFrame(origin, dir(s.a), dir(s.b))}
		loop := []*topo.Vertex{at(s.p), at(add(s.p, s.a)), at(add(add(s.p, s.a), s.b)), at(add(s.p, s.b))}
		faces = append(faces, b.planarFace(plane, loop))
	}
	return topo.NewShape(id, name, faces...), nil
}

// ring is the circle of radius r at height z, starting and ending on a
// vertex on the +X side.
func (b *builder) ring(r, z float64) *topo.Edge {
	v := b.vertex(v3.Vec{X: r, Z: z})
	c := topo.Circle{Frame: frameAt(z), Radius: r}
	return topo.NewEdge(b.ids.Next(), c, 0, 2*math.Pi, v, v)
}

func frameAt(z float64) topo.Frame {
	return topo.Frame{Origin: v3.Vec{Z: z}, X: axisX, Y: axisY, Z: axisZ}
}

// wall is the cylindrical face between two rings of the same radius. Its
// parameter domain is [0, 2pi] x [0, height], closed by a seam edge used
// twice. inward marks a face whose material lies outside the cylinder.
func (b *builder) wall(r float64, bottom, top *topo.Edge, inward bool) *topo.Face {
	z0 := bottom.Start.Point.Z
	h := top.Start.Point.Z - z0
	line, _ := topo.NewSegmentLine(bottom.Start.Point, top.Start.Point)
	seam := topo.NewEdge(b.ids.Next(), line, 0, h, bottom.Start, top.Start)

	w := topo.Wire{Coedges: []topo.Coedge{
		{Edge: bottom, PCurve: topo.Line2D{Dir: v2.Vec{X: 1}}},
		{Edge: seam, PCurve: topo.Line2D{Origin: v2.Vec{X: 2 * math.Pi}, Dir: v2.Vec{Y: 1}}},
		{Edge: top, Reversed: true, PCurve: topo.Line2D{Origin: v2.Vec{Y: h}, Dir: v2.Vec{X: 1}}},
		{Edge: seam, Reversed: true, PCurve: topo.Line2D{Dir: v2.Vec{Y: 1}}},
	}}
	f := topo.NewFace(b.ids.Next(), topo.Cylinder{Frame: frameAt(z0), Radius: r}, w)
	f.Reversed = inward
	return f
}

// disc is the planar face bounded by outer and, optionally, the hole
// bounded by inner. Both rings lie at the same height. A downward disc
// faces -Z.
func (b *builder) disc(outer, inner *topo.Edge, down bool) *topo.Face {
	frame := frameAt(outer.Start.Point.Z)
	if down {
		frame.Y, frame.Z = v3.Vec{Y: -1}, v3.Vec{Z: -1}
	}
	plane := topo.Plane{Frame: frame}
	// Rings run counter-clockwise seen from +Z, so a downward disc walks
	// its outer ring backwards.
	w := topo.Wire{Coedges: []topo.Coedge{
		{Edge: outer, Reversed: down, PCurve: topo.PlanarPCurve{Curve: outer.Curve, Plane: plane}},
	}}
	var holes []topo.Wire
	if inner != nil {
		holes = append(holes, topo.Wire{Coedges: []topo.Coedge{
			{Edge: inner, Reversed: !down, PCurve: topo.PlanarPCurve{Curve: inner.Curve, Plane: plane}},
		}})
	}
	return topo.NewFace(b.ids.Next(), plane, w, holes...)
}

// Cylinder creates a cylinder with the given height and radius, centered
// on the origin. It has a cylindrical wall and two planar caps.
func (k *Kernel) Cylinder(name string, height, radius float64) (*topo.Shape, error) {
	if err := positive("cylinder", height, radius); err != nil {
		return nil, err
	}
	id := topo.HashID("cylinder", name)
	b := newBuilder(id)
	bottom := b.ring(radius, -height/2)
	top := b.ring(radius, height/2)
	return topo.NewShape(id, name,
		b.wall(radius, bottom, top, false),
		b.disc(bottom, nil, true),
		b.disc(top, nil, false),
	), nil
}

// Tube creates a cylinder of radius outer with a coaxial hole of radius
// inner. Its caps are annuli: planar faces with an inner wire.
func (k *Kernel) Tube(name string, height, outer, inner float64) (*topo.Shape, error) {
	if err := positive("tube", height, outer, inner); err != nil {
		return nil, err
	}
	if inner >= outer {
		return nil, errors.Errorf("brep: tube inner radius %g must be below outer radius %g", inner, outer)
	}
	id := topo.HashID("tube", name)
	b := newBuilder(id)
	ob, ot := b.ring(outer, -height/2), b.ring(outer, height/2)
	ib, it := b.ring(inner, -height/2), b.ring(inner, height/2)
	return topo.NewShape(id, name,
		b.wall(outer, ob, ot, false),
		b.wall(inner, ib, it, true),
		b.disc(ob, ib, true),
		b.disc(ot, it, false),
	), nil
}

// Sphere creates a sphere centered on the origin. It has one face over
// [0, 2pi] x [-pi/2, pi/2] closed by a meridian seam and two degenerate
// pole edges.
func (k *Kernel) Sphere(name string, radius float64) (*topo.Shape, error) {
	if err := positive("sphere", radius); err != nil {
		return nil, err
	}
	id := topo.HashID("sphere", name)
	b := newBuilder(id)
	south := b.vertex(v3.Vec{Z: -radius})
	north := b.vertex(v3.Vec{Z: radius})

	// The meridian's parameter is the latitude.
	meridian := topo.Circle{Frame: topo.NewFrame(v3.Vec{}, axisX, axisZ), Radius: radius}
	seam := topo.NewEdge(b.ids.Next(), meridian, -math.Pi/2, math.Pi/2, south, north)
	southPole := topo.NewDegenerateEdge(b.ids.Next(), south, 0, 2*math.Pi)
	northPole := topo.NewDegenerateEdge(b.ids.Next(), north, 0, 2*math.Pi)

	w := topo.Wire{Coedges: []topo.Coedge{
		{Edge: southPole, PCurve: topo.Line2D{Origin: v2.Vec{Y: -math.Pi / 2}, Dir: v2.Vec{X: 1}}},
		{Edge: seam, PCurve: topo.Line2D{Origin: v2.Vec{X: 2 * math.Pi}, Dir: v2.Vec{Y: 1}}},
		{Edge: northPole, Reversed: true, PCurve: topo.Line2D{Origin: v2.Vec{Y: math.Pi / 2}, Dir: v2.Vec{X: 1}}},
		{Edge: seam, Reversed: true, PCurve: topo.Line2D{Dir: v2.Vec{Y: 1}}},
	}}
	surface := topo.Sphere{Frame: topo.WorldFrame, Radius: radius}
	return topo.NewShape(id, name, topo.NewFace(b.ids.Next(), surface, w)), nil
}
