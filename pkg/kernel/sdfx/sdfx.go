// Package sdfx implements the kernel.Implicit interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Its solids mirror the
// analytic brep primitives and serve as an independent measure of how far
// mesh points are from the true surface.
package sdfx

import (
	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/kernel/brep"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// Compile-time interface check.
var _ kernel.Implicit = (*Oracle)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Distance evaluates the signed distance field at p.
func (s *sdfxSolid) Distance(p v3.Vec) float64 {
	return s.s.Evaluate(p)
}

// Oracle implements kernel.Implicit using sdfx.
type Oracle struct {
	cells int
}

// New returns an Oracle rendering reference meshes with DefaultMeshCells.
func New() *Oracle {
	return &Oracle{cells: DefaultMeshCells}
}

// NewWithCells returns an Oracle rendering reference meshes with the given
// number of marching cubes cells along the longest axis.
func NewWithCells(cells int) *Oracle {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &Oracle{cells: cells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with its minimum corner at the origin, matching
// brep.Kernel.Box. sdf.Box3D centers the box, so it is shifted by half its
// size.
func (o *Oracle) Box(x, y, z float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, errors.Wrap(err, "sdfx.Box3D")
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder centered on the origin along Z.
func (o *Oracle) Cylinder(height, radius float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, errors.Wrap(err, "sdfx.Cylinder3D")
	}
	return wrap(s), nil
}

// Sphere creates a sphere centered on the origin.
func (o *Oracle) Sphere(radius float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, errors.Wrap(err, "sdfx.Sphere3D")
	}
	return wrap(s), nil
}

// Tube creates a cylinder with a coaxial hole. The cutter is longer than
// the tube so the caps come out as clean annuli.
func (o *Oracle) Tube(height, outer, inner float64) (kernel.Solid, error) {
	if inner >= outer {
		return nil, errors.Errorf("sdfx: tube inner radius %g must be below outer radius %g", inner, outer)
	}
	body, err := sdf.Cylinder3D(height, outer, 0)
	if err != nil {
		return nil, errors.Wrap(err, "sdfx.Cylinder3D")
	}
	hole, err := sdf.Cylinder3D(2*height, inner, 0)
	if err != nil {
		return nil, errors.Wrap(err, "sdfx.Cylinder3D")
	}
	return wrap(sdf.Difference3D(body, hole)), nil
}

// Translate moves a solid by (x, y, z).
func (o *Oracle) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes,
// in the same order as the brep kernel.
func (o *Oracle) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return wrap(sdf.Transform3D(unwrap(s), brep.RotationMatrix(x, y, z)))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (o *Oracle) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(o.cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
