package topo

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// SurfacePoint is a surface sample: position and unit normal of the natural
// parameterisation (dS/du x dS/dv).
type SurfacePoint struct {
	P      v3.Vec
	Normal v3.Vec
}

// Surface is a parametric surface S(u, v).
type Surface interface {
	Evaluate(u, v float64) (SurfacePoint, error)
	Transform(m sdf.M44) Surface
	Fingerprint() uint64
}

// Plane is Origin + u X + v Y.
type Plane struct {
	Frame Frame
}

func (p Plane) Evaluate(u, v float64) (SurfacePoint, error) {
	f := p.Frame
	return SurfacePoint{
		P:      f.Origin.Add(f.X.MulScalar(u)).Add(f.Y.MulScalar(v)),
		Normal: f.Z,
	}, nil
}

// Project returns the (u, v) parameters of the orthogonal projection of q.
func (p Plane) Project(q v3.Vec) v2.Vec {
	d := q.Sub(p.Frame.Origin)
	return v2.Vec{X: d.Dot(p.Frame.X), Y: d.Dot(p.Frame.Y)}
}

func (p Plane) Transform(m sdf.M44) Surface {
	return Plane{Frame: p.Frame.Transform(m)}
}

func (p Plane) Fingerprint() uint64 {
	h := newHasher().str("plane")
	p.Frame.hash(h)
	return h.sum()
}

// Cylinder is Origin + r(cos u X + sin u Y) + v Z.
type Cylinder struct {
	Frame  Frame
	Radius float64
}

func (c Cylinder) Evaluate(u, v float64) (SurfacePoint, error) {
	if !(c.Radius > 0) {
		return SurfacePoint{}, errors.Wrapf(ErrEvaluation, "cylinder radius %g", c.Radius)
	}
	s, co := math.Sincos(u)
	f := c.Frame
	n := f.X.MulScalar(co).Add(f.Y.MulScalar(s))
	return SurfacePoint{
		P:      f.Origin.Add(n.MulScalar(c.Radius)).Add(f.Z.MulScalar(v)),
		Normal: n,
	}, nil
}

func (c Cylinder) Transform(m sdf.M44) Surface {
	return Cylinder{Frame: c.Frame.Transform(m), Radius: c.Radius}
}

func (c Cylinder) Fingerprint() uint64 {
	h := newHasher().str("cylinder").float(c.Radius)
	c.Frame.hash(h)
	return h.sum()
}

// Sphere is Origin + r(cos v cos u X + cos v sin u Y + sin v Z) with
// u in [0, 2pi] and v in [-pi/2, pi/2].
type Sphere struct {
	Frame  Frame
	Radius float64
}

func (s Sphere) Evaluate(u, v float64) (SurfacePoint, error) {
	if !(s.Radius > 0) {
		return SurfacePoint{}, errors.Wrapf(ErrEvaluation, "sphere radius %g", s.Radius)
	}
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	f := s.Frame
	n := f.X.MulScalar(cv * cu).Add(f.Y.MulScalar(cv * su)).Add(f.Z.MulScalar(sv))
	return SurfacePoint{P: f.Origin.Add(n.MulScalar(s.Radius)), Normal: n}, nil
}

func (s Sphere) Transform(m sdf.M44) Surface {
	return Sphere{Frame: s.Frame.Transform(m), Radius: s.Radius}
}

func (s Sphere) Fingerprint() uint64 {
	h := newHasher().str("sphere").float(s.Radius)
	s.Frame.hash(h)
	return h.sum()
}

// FuncSurface adapts an arbitrary evaluation function; see FuncCurve.
type FuncSurface struct {
	Name string
	Fn   func(u, v float64) (SurfacePoint, error)
}

func (f FuncSurface) Evaluate(u, v float64) (SurfacePoint, error) {
	if f.Fn == nil {
		return SurfacePoint{}, errors.Wrapf(ErrEvaluation, "surface %q has no evaluator", f.Name)
	}
	return f.Fn(u, v)
}

func (f FuncSurface) Transform(m sdf.M44) Surface {
	inner := f.Fn
	return FuncSurface{
		Name: f.Name + "*",
		Fn: func(u, v float64) (SurfacePoint, error) {
			sp, err := inner(u, v)
			if err != nil {
				return sp, err
			}
			q := m.MulPosition(sp.P)
			return SurfacePoint{P: q, Normal: transformDir(m, sp.P, q, sp.Normal)}, nil
		},
	}
}

func (f FuncSurface) Fingerprint() uint64 {
	return newHasher().str("func-surface").str(f.Name).sum()
}
