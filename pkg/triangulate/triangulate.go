// Package triangulate builds constrained triangulations of faces in their
// parameter space. Boundary samples come from the shared edge
// discretizations and are kept as they are: boundary segments are fixed
// edges that are never flipped or split. Interior points are added until
// the triangles follow the surface within the requested deflection and
// normal angle.
package triangulate

import (
	"math"

	"github.com/chazu/brepmesh/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

var (
	ErrOpenWire        = errors.New("triangulate: wire is not closed")
	ErrWireOrientation = errors.New("triangulate: wire has the wrong orientation")
	ErrDegenerateLoop  = errors.New("triangulate: degenerate boundary loop")
	ErrTriangulation   = errors.New("triangulate: boundary could not be triangulated")
)

const (
	DefaultMaxPoints = 20000
	DefaultMaxPasses = 16
)

// Input describes one face.
type Input struct {
	Surface    topo.Surface
	Outer      Loop
	Inner      []Loop
	Deflection float64
	Angle      float64
	// MaxPoints bounds the number of interior points.
	MaxPoints int
	// MaxPasses bounds the number of refinement sweeps.
	MaxPasses int
}

// Point is an interior point added by refinement.
type Point struct {
	UV v2.Vec
	P  v3.Vec
}

// Result is a triangulation over local vertex indices: the boundary
// samples in loop order (outer loop first, then each inner loop) followed
// by the interior points.
type Result struct {
	// Triangles are counter-clockwise in parameter space.
	Triangles [][3]int
	// Nodes holds the mesh node of every boundary sample.
	Nodes    []int
	Interior []Point
	// Fixed lists the boundary segments as local index pairs.
	Fixed     [][2]int
	Truncated bool
}

// Triangulate checks the boundary loops, triangulates the region they
// enclose and refines it against the surface.
func Triangulate(in Input) (*Result, error) {
	if in.MaxPoints <= 0 {
		in.MaxPoints = DefaultMaxPoints
	}
	if in.MaxPasses <= 0 {
		in.MaxPasses = DefaultMaxPasses
	}
	if in.Surface == nil {
		return nil, errors.Wrap(ErrTriangulation, "face has no surface")
	}

	loops := append([]Loop{in.Outer}, in.Inner...)
	for i, l := range loops {
		if len(l) < 3 {
			return nil, errors.Wrapf(ErrDegenerateLoop, "loop %d has %d samples", i, len(l))
		}
		a := l.SignedArea()
		ext := l.extent()
		if math.Abs(a) <= 1e-12*ext*ext {
			return nil, errors.Wrapf(ErrDegenerateLoop, "loop %d encloses no area", i)
		}
		if i == 0 && a < 0 {
			return nil, errors.Wrap(ErrWireOrientation, "outer loop is clockwise")
		}
		if i > 0 && a > 0 {
			return nil, errors.Wrapf(ErrWireOrientation, "inner loop %d is counter-clockwise", i-1)
		}
	}

	tr := newTriangulation(in)
	var rings [][]int
	for _, l := range loops {
		ring := make([]int, len(l))
		for k, s := range l {
			ring[k] = tr.addBoundary(s)
		}
		for k := range ring {
			tr.fix(ring[k], ring[(k+1)%len(ring)])
		}
		rings = append(rings, ring)
	}

	ring, err := tr.bridgeHoles(rings[0], rings[1:])
	if err != nil {
		return nil, err
	}
	if err := tr.earClip(ring); err != nil {
		return nil, err
	}
	tr.link()
	tr.legalizeAll()
	if err := tr.refine(); err != nil {
		return nil, err
	}
	return tr.result(), nil
}
