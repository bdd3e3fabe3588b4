package meshadapt

import (
	"math"
	"runtime"

	"github.com/chazu/brepmesh/pkg/discretize"
	"github.com/chazu/brepmesh/pkg/triangulate"
	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned for parameters that can never produce a
// mesh. It is reported before any work starts.
var ErrInvalidArgument = errors.New("meshadapt: invalid argument")

// Params are the tessellation tolerances.
type Params struct {
	// Deflection is the maximum distance between the mesh and the true
	// geometry. In relative mode it is a fraction of the edge length and of
	// the shape size.
	Deflection float64 `yaml:"deflection" json:"deflection"`
	// Angle is the maximum angle in radians between consecutive tangents
	// along an edge and between surface normals across a triangle.
	Angle float64 `yaml:"angle" json:"angle"`
	// Ratio caps relative edge deflections at Ratio x Deflection x the
	// largest bounding box dimension. Zero disables the cap.
	Ratio    float64 `yaml:"ratio" json:"ratio"`
	Relative bool    `yaml:"relative" json:"relative"`

	MaxEdgePoints int `yaml:"max_edge_points" json:"maxEdgePoints"`
	MaxFacePoints int `yaml:"max_face_points" json:"maxFacePoints"`
	// Workers bounds the goroutines used per phase. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultParams returns the tolerances used when none are configured.
func DefaultParams() Params {
	return Params{
		Deflection:    0.1,
		Angle:         0.5,
		MaxEdgePoints: discretize.DefaultMaxPoints,
		MaxFacePoints: triangulate.DefaultMaxPoints,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

func checkDeflection(d float64) error {
	if !(d > 0) || math.IsInf(d, 0) {
		return errors.Wrapf(ErrInvalidArgument, "deflection must be positive and finite, got %g", d)
	}
	return nil
}

func checkAngle(a float64) error {
	if !(a > 0) || a > math.Pi {
		return errors.Wrapf(ErrInvalidArgument, "angle must be in (0, pi], got %g", a)
	}
	return nil
}

func checkRatio(r float64) error {
	if !(r >= 0) || math.IsInf(r, 0) {
		return errors.Wrapf(ErrInvalidArgument, "ratio must be zero or positive, got %g", r)
	}
	return nil
}

// Validate reports the first parameter that cannot be used.
func (p Params) Validate() error {
	if err := checkDeflection(p.Deflection); err != nil {
		return err
	}
	if err := checkAngle(p.Angle); err != nil {
		return err
	}
	if err := checkRatio(p.Ratio); err != nil {
		return err
	}
	if p.MaxEdgePoints < 0 || p.MaxFacePoints < 0 || p.Workers < 0 {
		return errors.Wrapf(ErrInvalidArgument, "limits must not be negative, got %d edge points, %d face points, %d workers",
			p.MaxEdgePoints, p.MaxFacePoints, p.Workers)
	}
	return nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}
