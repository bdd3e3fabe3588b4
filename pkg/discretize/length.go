package discretize

import (
	"math"

	"github.com/chazu/brepmesh/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// 5-point Gauss-Legendre rule on [-1, 1].
var (
	glNodes   = [5]float64{0, -0.5384693101056831, 0.5384693101056831, -0.9061798459386640, 0.9061798459386640}
	glWeights = [5]float64{0.5688888888888889, 0.4786286704993665, 0.4786286704993665, 0.2369268850561891, 0.2369268850561891}
)

const arcLengthPanels = 16

// ArcLength integrates |C'(t)| over [first, last] with composite
// Gauss-Legendre quadrature.
func ArcLength(c topo.Curve, first, last float64) (float64, error) {
	if first == last {
		return 0, nil
	}
	h := (last - first) / arcLengthPanels
	var total float64
	for i := 0; i < arcLengthPanels; i++ {
		mid := first + h*(float64(i)+0.5)
		for k, x := range glNodes {
			t := mid + x*h/2
			cp, err := c.Evaluate(t)
			if err != nil {
				return 0, &evaluationError{t: t, err: err}
			}
			total += glWeights[k] * cp.D1.Length()
		}
	}
	return math.Abs(total * h / 2), nil
}

// SurfaceDeviation is the distance between S(uv) and p.
func SurfaceDeviation(s topo.Surface, uv v2.Vec, p v3.Vec) (float64, error) {
	sp, err := s.Evaluate(uv.X, uv.Y)
	if err != nil {
		return 0, errors.Wrapf(ErrEvaluation, "surface at (%g, %g): %v", uv.X, uv.Y, err)
	}
	return sp.P.Sub(p).Length(), nil
}

// NormalAngle is the largest angle between the surface normals at the given
// parameters.
func NormalAngle(s topo.Surface, uvs ...v2.Vec) (float64, error) {
	normals := make([]v3.Vec, 0, len(uvs))
	for _, uv := range uvs {
		sp, err := s.Evaluate(uv.X, uv.Y)
		if err != nil {
			return 0, errors.Wrapf(ErrEvaluation, "surface at (%g, %g): %v", uv.X, uv.Y, err)
		}
		normals = append(normals, sp.Normal)
	}
	var worst float64
	for i := range normals {
		for j := i + 1; j < len(normals); j++ {
			worst = math.Max(worst, tangentAngle(normals[i], normals[j]))
		}
	}
	return worst, nil
}
