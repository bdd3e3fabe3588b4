package topo

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// ErrEvaluation is returned by curves and surfaces that cannot be evaluated
// at the requested parameter.
var ErrEvaluation = errors.New("topo: geometry evaluation failed")

// Frame is a right-handed orthonormal placement.
type Frame struct {
	Origin  v3.Vec
	X, Y, Z v3.Vec
}

// NewFrame builds a frame from an origin and two axes. Z is X cross Y.
func NewFrame(origin, x, y v3.Vec) Frame {
	x = x.Normalize()
	y = y.Normalize()
	return Frame{Origin: origin, X: x, Y: y, Z: x.Cross(y).Normalize()}
}

// WorldFrame is the identity placement.
var WorldFrame = Frame{
	X: v3.Vec{X: 1},
	Y: v3.Vec{Y: 1},
	Z: v3.Vec{Z: 1},
}

// Transform applies a rigid transform to the frame.
func (f Frame) Transform(m sdf.M44) Frame {
	o := m.MulPosition(f.Origin)
	return Frame{
		Origin: o,
		X:      transformDir(m, f.Origin, o, f.X),
		Y:      transformDir(m, f.Origin, o, f.Y),
		Z:      transformDir(m, f.Origin, o, f.Z),
	}
}

func (f Frame) hash(h *hasher) {
	h.vec(f.Origin, f.X, f.Y, f.Z)
}

// transformDir maps a direction anchored at p (image q) through m.
func transformDir(m sdf.M44, p, q, d v3.Vec) v3.Vec {
	return m.MulPosition(p.Add(d)).Sub(q)
}

// CurvePoint is a curve sample: position and first derivative.
type CurvePoint struct {
	P  v3.Vec
	D1 v3.Vec
}

// Curve is a parametric 3D curve.
type Curve interface {
	Evaluate(t float64) (CurvePoint, error)
	Transform(m sdf.M44) Curve
	Fingerprint() uint64
}

// Line is Origin + t*Dir.
type Line struct {
	Origin v3.Vec
	Dir    v3.Vec
}

// NewSegmentLine returns a unit-speed line through a and b with a at t=0.
// The second result is the parameter of b.
func NewSegmentLine(a, b v3.Vec) (Line, float64) {
	d := b.Sub(a)
	l := d.Length()
	if l == 0 {
		return Line{Origin: a, Dir: v3.Vec{X: 1}}, 0
	}
	return Line{Origin: a, Dir: d.MulScalar(1 / l)}, l
}

func (l Line) Evaluate(t float64) (CurvePoint, error) {
	return CurvePoint{P: l.Origin.Add(l.Dir.MulScalar(t)), D1: l.Dir}, nil
}

func (l Line) Transform(m sdf.M44) Curve {
	o := m.MulPosition(l.Origin)
	return Line{Origin: o, Dir: transformDir(m, l.Origin, o, l.Dir)}
}

func (l Line) Fingerprint() uint64 {
	return newHasher().str("line").vec(l.Origin, l.Dir).sum()
}

// Circle is Origin + r*(cos t X + sin t Y) in its frame.
type Circle struct {
	Frame  Frame
	Radius float64
}

func (c Circle) Evaluate(t float64) (CurvePoint, error) {
	if !(c.Radius > 0) {
		return CurvePoint{}, errors.Wrapf(ErrEvaluation, "circle radius %g", c.Radius)
	}
	s, co := math.Sincos(t)
	f := c.Frame
	p := f.Origin.Add(f.X.MulScalar(c.Radius * co)).Add(f.Y.MulScalar(c.Radius * s))
	d := f.X.MulScalar(-c.Radius * s).Add(f.Y.MulScalar(c.Radius * co))
	return CurvePoint{P: p, D1: d}, nil
}

func (c Circle) Transform(m sdf.M44) Curve {
	return Circle{Frame: c.Frame.Transform(m), Radius: c.Radius}
}

func (c Circle) Fingerprint() uint64 {
	h := newHasher().str("circle").float(c.Radius)
	c.Frame.hash(h)
	return h.sum()
}

// DegenerateCurve collapses its whole parameter range onto one point, such
// as the pole edges of a sphere.
type DegenerateCurve struct {
	Point v3.Vec
}

func (d DegenerateCurve) Evaluate(float64) (CurvePoint, error) {
	return CurvePoint{P: d.Point}, nil
}

func (d DegenerateCurve) Transform(m sdf.M44) Curve {
	return DegenerateCurve{Point: m.MulPosition(d.Point)}
}

func (d DegenerateCurve) Fingerprint() uint64 {
	return newHasher().str("degenerate").vec(d.Point).sum()
}

// FuncCurve adapts an arbitrary evaluation function. Name identifies the
// geometry for fingerprinting; two FuncCurves with equal names are assumed
// to describe the same curve.
type FuncCurve struct {
	Name string
	Fn   func(t float64) (CurvePoint, error)
}

func (f FuncCurve) Evaluate(t float64) (CurvePoint, error) {
	if f.Fn == nil {
		return CurvePoint{}, errors.Wrapf(ErrEvaluation, "curve %q has no evaluator", f.Name)
	}
	return f.Fn(t)
}

func (f FuncCurve) Transform(m sdf.M44) Curve {
	inner := f.Fn
	return FuncCurve{
		Name: f.Name + "*",
		Fn: func(t float64) (CurvePoint, error) {
			cp, err := inner(t)
			if err != nil {
				return cp, err
			}
			q := m.MulPosition(cp.P)
			return CurvePoint{P: q, D1: transformDir(m, cp.P, q, cp.D1)}, nil
		},
	}
}

func (f FuncCurve) Fingerprint() uint64 {
	return newHasher().str("func-curve").str(f.Name).sum()
}
