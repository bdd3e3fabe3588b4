package topo

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	edgeBoundSamples    = 16
	surfaceBoundSamples = 8
)

type boxBuilder struct {
	box   sdf.Box3
	empty bool
}

func (b *boxBuilder) add(p v3.Vec) {
	if b.empty {
		b.box = sdf.Box3{Min: p, Max: p}
		b.empty = false
		return
	}
	b.box.Min = v3.Vec{X: math.Min(b.box.Min.X, p.X), Y: math.Min(b.box.Min.Y, p.Y), Z: math.Min(b.box.Min.Z, p.Z)}
	b.box.Max = v3.Vec{X: math.Max(b.box.Max.X, p.X), Y: math.Max(b.box.Max.Y, p.Y), Z: math.Max(b.box.Max.Z, p.Z)}
}

// BoundingBox returns an axis-aligned box over the vertices, sampled edge
// points and, for curved faces, a grid of surface points spanning the
// face's parameter range. Geometry that fails to evaluate is ignored. An
// empty shape yields a zero box.
func (s *Shape) BoundingBox() sdf.Box3 {
	b := &boxBuilder{empty: true}
	for _, v := range s.Vertices() {
		b.add(v.Point)
	}
	for _, e := range s.Edges() {
		if e.Degenerate {
			continue
		}
		for i := 0; i <= edgeBoundSamples; i++ {
			t := e.First + (e.Last-e.First)*float64(i)/edgeBoundSamples
			if cp, err := e.Curve.Evaluate(t); err == nil {
				b.add(cp.P)
			}
		}
	}
	for _, f := range s.Faces {
		if _, planar := f.Surface.(Plane); planar {
			continue
		}
		umin, umax, vmin, vmax, ok := f.uvRange()
		if !ok {
			continue
		}
		for i := 0; i <= surfaceBoundSamples; i++ {
			u := umin + (umax-umin)*float64(i)/surfaceBoundSamples
			for j := 0; j <= surfaceBoundSamples; j++ {
				v := vmin + (vmax-vmin)*float64(j)/surfaceBoundSamples
				if sp, err := f.Surface.Evaluate(u, v); err == nil {
					b.add(sp.P)
				}
			}
		}
	}
	return b.box
}

// uvRange bounds the face in parameter space by sampling its pcurves.
func (f *Face) uvRange() (umin, umax, vmin, vmax float64, ok bool) {
	umin, vmin = math.Inf(1), math.Inf(1)
	umax, vmax = math.Inf(-1), math.Inf(-1)
	for _, w := range f.Wires() {
		for _, c := range w.Coedges {
			e := c.Edge
			for i := 0; i <= edgeBoundSamples; i++ {
				t := e.First + (e.Last-e.First)*float64(i)/edgeBoundSamples
				uv, err := c.PCurve.Evaluate(t)
				if err != nil {
					continue
				}
				umin, umax = math.Min(umin, uv.X), math.Max(umax, uv.X)
				vmin, vmax = math.Min(vmin, uv.Y), math.Max(vmax, uv.Y)
				ok = true
			}
		}
	}
	return umin, umax, vmin, vmax, ok
}

// MaxDimension is the largest side of b.
func MaxDimension(b sdf.Box3) float64 {
	sz := b.Size()
	return math.Max(sz.X, math.Max(sz.Y, sz.Z))
}
