// Package discretize samples edge curves into polylines that stay within a
// chord deflection and a tangent angle of the true curve.
package discretize

import (
	"fmt"
	"math"

	"github.com/chazu/brepmesh/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// ErrEvaluation is matched by every error caused by a curve or surface that
// could not be evaluated.
var ErrEvaluation = topo.ErrEvaluation

const (
	DefaultMaxPoints = 10000
	DefaultMaxDepth  = 24
	// closedSpans is the number of spans a closed curve starts with so its
	// polygon is never shorter than a triangle.
	closedSpans = 4
)

// Params control the sampling of one edge.
type Params struct {
	Deflection float64
	Angle      float64
	MaxPoints  int
	MaxDepth   int
}

func (p Params) validate() error {
	if !(p.Deflection > 0) || math.IsInf(p.Deflection, 0) {
		return errors.Errorf("discretize: deflection must be positive, got %g", p.Deflection)
	}
	if !(p.Angle > 0) || math.IsInf(p.Angle, 0) {
		return errors.Errorf("discretize: angle must be positive, got %g", p.Angle)
	}
	return nil
}

func (p Params) withDefaults() Params {
	if p.MaxPoints < 2 {
		p.MaxPoints = DefaultMaxPoints
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = DefaultMaxDepth
	}
	return p
}

// Result is the discretization of an edge in edge direction.
type Result struct {
	Params []float64
	Points []v3.Vec
	// Degenerate is set for single point results.
	Degenerate bool
	// Truncated is set when MaxPoints or MaxDepth stopped refinement.
	Truncated bool
	Length    float64
}

type evaluationError struct {
	t   float64
	err error
}

func (e *evaluationError) Error() string {
	return fmt.Sprintf("discretize: curve evaluation at t=%g: %v", e.t, e.err)
}

func (e *evaluationError) Unwrap() error        { return e.err }
func (e *evaluationError) Is(target error) bool { return target == ErrEvaluation }

type sample struct {
	t float64
	topo.CurvePoint
}

type sampler struct {
	curve     topo.Curve
	p         Params
	out       *Result
	truncated bool
}

func (s *sampler) eval(t float64) (sample, error) {
	cp, err := s.curve.Evaluate(t)
	if err != nil {
		return sample{}, &evaluationError{t: t, err: err}
	}
	if !finite(cp.P) {
		return sample{}, &evaluationError{t: t, err: errors.New("non-finite point")}
	}
	return sample{t: t, CurvePoint: cp}, nil
}

func (s *sampler) push(x sample) {
	s.out.Params = append(s.out.Params, x.t)
	s.out.Points = append(s.out.Points, x.P)
}

// span refines [a, b] and appends every accepted sample after a.
func (s *sampler) span(a, b sample, depth int) error {
	flat, err := s.flat(a, b)
	if err != nil {
		return err
	}
	if flat {
		s.push(b)
		return nil
	}
	if depth >= s.p.MaxDepth || len(s.out.Points) >= s.p.MaxPoints-1 {
		s.truncated = true
		s.push(b)
		return nil
	}
	m, err := s.eval((a.t + b.t) / 2)
	if err != nil {
		return err
	}
	if err := s.span(a, m, depth+1); err != nil {
		return err
	}
	return s.span(m, b, depth+1)
}

// flat reports whether the chord a-b is within deflection of the curve at
// its quarter points and the tangent turns less than the angle across it.
func (s *sampler) flat(a, b sample) (bool, error) {
	if tangentAngle(a.D1, b.D1) > s.p.Angle {
		return false, nil
	}
	for _, f := range [3]float64{0.25, 0.5, 0.75} {
		q, err := s.eval(a.t + (b.t-a.t)*f)
		if err != nil {
			return false, err
		}
		if segmentDistance(q.P, a.P, b.P) > s.p.Deflection {
			return false, nil
		}
	}
	return true, nil
}

// Edge samples e between its first and last parameters. The first and last
// samples sit on the edge's start and end parameters. Degenerate edges,
// edges with an empty parameter range and edges shorter than their vertex
// tolerance yield a single sample.
func Edge(e *topo.Edge, p Params) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	if e.Degenerate || e.First == e.Last {
		return single(e, 0), nil
	}

	length, err := ArcLength(e.Curve, e.First, e.Last)
	if err != nil {
		return nil, err
	}
	if length <= math.Max(e.Start.Tolerance, e.End.Tolerance) {
		return single(e, length), nil
	}

	s := &sampler{curve: e.Curve, p: p, out: &Result{Length: length}}
	spans := 1
	if e.Closed() {
		spans = closedSpans
	}
	prev, err := s.eval(e.First)
	if err != nil {
		return nil, err
	}
	s.push(prev)
	for i := 1; i <= spans; i++ {
		t := e.First + (e.Last-e.First)*float64(i)/float64(spans)
		if i == spans {
			t = e.Last
		}
		next, err := s.eval(t)
		if err != nil {
			return nil, err
		}
		if err := s.span(prev, next, 0); err != nil {
			return nil, err
		}
		prev = next
	}
	s.out.Truncated = s.truncated
	return s.out, nil
}

func single(e *topo.Edge, length float64) *Result {
	return &Result{
		Params:     []float64{e.First},
		Points:     []v3.Vec{e.Start.Point},
		Degenerate: true,
		Length:     length,
	}
}

// segmentDistance is the distance from q to the segment a-b.
func segmentDistance(q, a, b v3.Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return q.Sub(a).Length()
	}
	t := math.Max(0, math.Min(1, q.Sub(a).Dot(ab)/l2))
	return q.Sub(a.Add(ab.MulScalar(t))).Length()
}

// tangentAngle is the angle between two directions; zero when either
// vanishes.
func tangentAngle(a, b v3.Vec) float64 {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

func finite(p v3.Vec) bool {
	for _, x := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
