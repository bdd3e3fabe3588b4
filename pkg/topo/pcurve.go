package topo

import (
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// PCurve maps an edge parameter to (u, v) on the surface of one face. It
// shares the parameter range of the 3D curve it shadows.
type PCurve interface {
	Evaluate(t float64) (v2.Vec, error)
	Transform(m sdf.M44) PCurve
	Fingerprint() uint64
}

// Line2D is Origin + t*Dir in the parameter plane.
type Line2D struct {
	Origin v2.Vec
	Dir    v2.Vec
}

func (l Line2D) Evaluate(t float64) (v2.Vec, error) {
	return l.Origin.Add(l.Dir.MulScalar(t)), nil
}

// Transform is the identity: parameter space does not move with the shape.
func (l Line2D) Transform(sdf.M44) PCurve {
	return l
}

func (l Line2D) Fingerprint() uint64 {
	return newHasher().str("line2d").vec2(l.Origin, l.Dir).sum()
}

// PlanarPCurve is the projection of a 3D curve onto a plane. It is exact
// for curves lying in the plane.
type PlanarPCurve struct {
	Curve Curve
	Plane Plane
}

func (p PlanarPCurve) Evaluate(t float64) (v2.Vec, error) {
	cp, err := p.Curve.Evaluate(t)
	if err != nil {
		return v2.Vec{}, err
	}
	return p.Plane.Project(cp.P), nil
}

func (p PlanarPCurve) Transform(m sdf.M44) PCurve {
	return PlanarPCurve{
		Curve: p.Curve.Transform(m),
		Plane: p.Plane.Transform(m).(Plane),
	}
}

func (p PlanarPCurve) Fingerprint() uint64 {
	return newHasher().str("planar").u64(p.Curve.Fingerprint(), p.Plane.Fingerprint()).sum()
}
