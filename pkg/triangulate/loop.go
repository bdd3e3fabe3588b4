package triangulate

import (
	"math"

	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// Sample is one boundary point of a face: its position in the face's
// parameter space, its 3D position and the mesh node it came from.
type Sample struct {
	UV   v2.Vec
	P    v3.Vec
	Node int
}

// Loop is a closed boundary in parameter space. The last sample connects
// back to the first.
type Loop []Sample

// SignedArea is positive for counter-clockwise loops.
func (l Loop) SignedArea() float64 {
	var a float64
	for i := range l {
		p, q := l[i].UV, l[(i+1)%len(l)].UV
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func (l Loop) extent() float64 {
	if len(l) == 0 {
		return 0
	}
	lo, hi := l[0].UV, l[0].UV
	for _, s := range l[1:] {
		lo = v2.Vec{X: math.Min(lo.X, s.UV.X), Y: math.Min(lo.Y, s.UV.Y)}
		hi = v2.Vec{X: math.Max(hi.X, s.UV.X), Y: math.Max(hi.Y, s.UV.Y)}
	}
	return math.Max(hi.X-lo.X, hi.Y-lo.Y)
}

// PolygonSource provides the shared edge discretizations a loop is built
// from. *mesh.ShapeMesh implements it.
type PolygonSource interface {
	Polygon(edge topo.ID) (*mesh.Polygon, bool)
	Point(node int) v3.Vec
}

// closureTolerance is the relative parameter-space gap accepted between
// consecutive coedges.
const closureTolerance = 1e-6

// BuildLoop walks the coedges of w and maps each edge polygon into the
// face's parameter space through the coedge's pcurve. Every coedge
// contributes its samples in coedge direction except the last one, which is
// the first sample of the next coedge. A single-point polygon (degenerate
// edge) contributes its point at the coedge's start parameter.
func BuildLoop(w topo.Wire, src PolygonSource) (Loop, error) {
	if len(w.Coedges) == 0 {
		return nil, errors.Wrap(ErrDegenerateLoop, "empty wire")
	}

	var loop Loop
	ends := make([]v2.Vec, len(w.Coedges))
	starts := make([]v2.Vec, len(w.Coedges))
	for ci, c := range w.Coedges {
		poly, ok := src.Polygon(c.Edge.ID())
		if !ok {
			return nil, errors.Wrapf(ErrOpenWire, "edge %s has no discretization", c.Edge.ID())
		}
		var err error
		if starts[ci], err = c.PCurve.Evaluate(c.StartParam()); err != nil {
			return nil, errors.Wrapf(ErrOpenWire, "pcurve of edge %s: %v", c.Edge.ID(), err)
		}
		if ends[ci], err = c.PCurve.Evaluate(c.EndParam()); err != nil {
			return nil, errors.Wrapf(ErrOpenWire, "pcurve of edge %s: %v", c.Edge.ID(), err)
		}

		n := len(poly.Nodes)
		if n == 1 {
			loop = append(loop, Sample{UV: starts[ci], P: src.Point(poly.Nodes[0]), Node: poly.Nodes[0]})
			continue
		}
		for k := 0; k < n-1; k++ {
			i := k
			if c.Reversed {
				i = n - 1 - k
			}
			uv, err := c.PCurve.Evaluate(poly.Params[i])
			if err != nil {
				return nil, errors.Wrapf(ErrOpenWire, "pcurve of edge %s: %v", c.Edge.ID(), err)
			}
			loop = append(loop, Sample{UV: uv, P: src.Point(poly.Nodes[i]), Node: poly.Nodes[i]})
		}
	}

	tol := closureTolerance * (1 + loop.extent())
	for i, c := range w.Coedges {
		next := w.Coedges[(i+1)%len(w.Coedges)]
		if c.EndVertex().ID() != next.StartVertex().ID() {
			return nil, errors.Wrapf(ErrOpenWire, "edge %s ends at vertex %s, edge %s starts at %s",
				c.Edge.ID(), c.EndVertex().ID(), next.Edge.ID(), next.StartVertex().ID())
		}
		if gap := ends[i].Sub(starts[(i+1)%len(w.Coedges)]).Length(); gap > tol {
			return nil, errors.Wrapf(ErrOpenWire, "parameter gap %g after edge %s", gap, c.Edge.ID())
		}
	}

	if len(loop) < 3 {
		return nil, errors.Wrapf(ErrDegenerateLoop, "%d samples", len(loop))
	}
	for i := range loop {
		if loop[i].UV.Sub(loop[(i+1)%len(loop)].UV).Length() <= tol {
			return nil, errors.Wrapf(ErrDegenerateLoop, "repeated sample at (%g, %g)", loop[i].UV.X, loop[i].UV.Y)
		}
	}
	return loop, nil
}
