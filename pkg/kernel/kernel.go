// Package kernel defines the geometry kernels the mesher collaborates with.
// A Kernel builds boundary representations that the incremental mesher
// consumes. An Implicit kernel builds the signed distance counterpart of
// the same primitives and is used to check meshes against the true surface.
package kernel

import (
	"math"

	"github.com/chazu/brepmesh/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kernel builds B-Rep shapes. Shape and entity IDs derive from the name, so
// building the same primitive twice yields the same topology.
type Kernel interface {
	// Primitives
	Box(name string, x, y, z float64) (*topo.Shape, error)
	Cylinder(name string, height, radius float64) (*topo.Shape, error)
	Sphere(name string, radius float64) (*topo.Shape, error)
	Tube(name string, height, outer, inner float64) (*topo.Shape, error)

	// Transforms
	Translate(s *topo.Shape, x, y, z float64) *topo.Shape
	Rotate(s *topo.Shape, x, y, z float64) *topo.Shape // Euler angles in degrees
}

// Solid is an opaque handle to an implicit solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Distance is the signed distance from p to the surface, negative inside.
	Distance(p v3.Vec) float64
}

// Implicit builds signed distance solids matching the Kernel primitives and
// placements.
type Implicit interface {
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	Sphere(radius float64) (Solid, error)
	Tube(height, outer, inner float64) (Solid, error)

	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid

	// ToMesh renders a reference mesh independent of any B-Rep.
	ToMesh(s Solid) (*Mesh, error)
}

// Deviation reports the largest absolute distance from the solid's surface
// over points. It is zero for an empty slice.
func Deviation(s Solid, points []v3.Vec) float64 {
	var worst float64
	for _, p := range points {
		worst = math.Max(worst, math.Abs(s.Distance(p)))
	}
	return worst
}
