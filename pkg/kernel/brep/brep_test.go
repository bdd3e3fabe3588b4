package brep

import (
	"math"
	"testing"

	"github.com/chazu/brepmesh/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// wireArea samples a wire through its pcurves and returns the signed
// parameter-space area it encloses.
func wireArea(t *testing.T, w topo.Wire) (float64, v2.Vec) {
	t.Helper()
	var pts []v2.Vec
	for _, c := range w.Coedges {
		for i := 0; i < 16; i++ {
			s := c.StartParam() + (c.EndParam()-c.StartParam())*float64(i)/16
			uv, err := c.PCurve.Evaluate(s)
			if err != nil {
				t.Fatalf("pcurve of edge %s: %v", c.Edge.ID(), err)
			}
			pts = append(pts, uv)
		}
	}
	var a float64
	var c v2.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
		c = c.Add(p)
	}
	return a / 2, c.MulScalar(1 / float64(len(pts)))
}

// checkFace verifies that every coedge's pcurve maps onto its 3D curve, that
// consecutive coedges share vertices and that wires are oriented.
func checkFace(t *testing.T, f *topo.Face) {
	t.Helper()
	for wi, w := range f.Wires() {
		for ci, c := range w.Coedges {
			next := w.Coedges[(ci+1)%len(w.Coedges)]
			if c.EndVertex().ID() != next.StartVertex().ID() {
				t.Errorf("face %s wire %d: coedge %d does not meet coedge %d", f.ID(), wi, ci, ci+1)
			}
			for i := 0; i <= 4; i++ {
				s := c.Edge.First + (c.Edge.Last-c.Edge.First)*float64(i)/4
				uv, err := c.PCurve.Evaluate(s)
				if err != nil {
					t.Fatalf("pcurve: %v", err)
				}
				sp, err := f.Surface.Evaluate(uv.X, uv.Y)
				if err != nil {
					t.Fatalf("surface: %v", err)
				}
				cp, err := c.Edge.Curve.Evaluate(s)
				if err != nil {
					t.Fatalf("curve: %v", err)
				}
				if d := sp.P.Sub(cp.P).Length(); d > 1e-9 {
					t.Errorf("face %s edge %s: pcurve is %g away from the curve at %g", f.ID(), c.Edge.ID(), d, s)
				}
			}
		}
		area, _ := wireArea(t, w)
		if wi == 0 && area <= 0 {
			t.Errorf("face %s: outer wire area %g, want counter-clockwise", f.ID(), area)
		}
		if wi > 0 && area >= 0 {
			t.Errorf("face %s: inner wire area %g, want clockwise", f.ID(), area)
		}
	}
}

// outwardNormal evaluates the material-side normal at the middle of the
// face's outer wire.
func outwardNormal(t *testing.T, f *topo.Face) (v3.Vec, v3.Vec) {
	t.Helper()
	_, c := wireArea(t, f.Outer)
	sp, err := f.Surface.Evaluate(c.X, c.Y)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	n := sp.Normal
	if f.Reversed {
		n = n.MulScalar(-1)
	}
	return sp.P, n
}

func TestBox(t *testing.T) {
	k := New()
	s, err := k.Box("board", 100, 50, 25)
	if err != nil {
		t.Fatalf("Box() error = %v", err)
	}
	if len(s.Faces) != 6 || len(s.Edges()) != 12 || len(s.Vertices()) != 8 {
		t.Fatalf("box has %d faces, %d edges, %d vertices, want 6, 12, 8",
			len(s.Faces), len(s.Edges()), len(s.Vertices()))
	}
	for id, faces := range s.EdgeFaces() {
		if len(faces) != 2 {
			t.Errorf("edge %s has %d faces, want 2", id, len(faces))
		}
	}
	center := v3.Vec{X: 50, Y: 25, Z: 12.5}
	for _, f := range s.Faces {
		checkFace(t, f)
		p, n := outwardNormal(t, f)
		if n.Dot(p.Sub(center)) <= 0 {
			t.Errorf("face %s normal %v points inward", f.ID(), n)
		}
	}
	bb := s.BoundingBox()
	if bb.Min.Length() > 1e-9 || bb.Max.Sub(v3.Vec{X: 100, Y: 50, Z: 25}).Length() > 1e-9 {
		t.Errorf("BoundingBox() = %v, want min corner at origin", bb)
	}
}

func TestCylinder(t *testing.T) {
	k := New()
	s, err := k.Cylinder("dowel", 50, 10)
	if err != nil {
		t.Fatalf("Cylinder() error = %v", err)
	}
	if len(s.Faces) != 3 || len(s.Edges()) != 3 || len(s.Vertices()) != 2 {
		t.Fatalf("cylinder has %d faces, %d edges, %d vertices, want 3, 3, 2",
			len(s.Faces), len(s.Edges()), len(s.Vertices()))
	}
	for _, f := range s.Faces {
		checkFace(t, f)
		p, n := outwardNormal(t, f)
		if n.Dot(p) <= 0 {
			t.Errorf("face %s normal %v points inward", f.ID(), n)
		}
	}
	bb := s.BoundingBox()
	if math.Abs(bb.Max.Z-25) > 1e-9 || math.Abs(bb.Min.Z+25) > 1e-9 {
		t.Errorf("BoundingBox() z range = [%g, %g], want [-25, 25]", bb.Min.Z, bb.Max.Z)
	}
	if math.Abs(bb.Max.X-10) > 1e-9 {
		t.Errorf("BoundingBox() max x = %g, want 10", bb.Max.X)
	}
}

func TestTube(t *testing.T) {
	k := New()
	s, err := k.Tube("pipe", 20, 10, 6)
	if err != nil {
		t.Fatalf("Tube() error = %v", err)
	}
	if len(s.Faces) != 4 || len(s.Edges()) != 6 || len(s.Vertices()) != 4 {
		t.Fatalf("tube has %d faces, %d edges, %d vertices, want 4, 6, 4",
			len(s.Faces), len(s.Edges()), len(s.Vertices()))
	}
	holes := 0
	for _, f := range s.Faces {
		checkFace(t, f)
		holes += len(f.Inner)
	}
	if holes != 2 {
		t.Errorf("tube caps have %d holes, want 2", holes)
	}
	// The inner wall faces the axis.
	p, n := outwardNormal(t, s.Faces[1])
	if n.Dot(v3.Vec{X: p.X, Y: p.Y}) >= 0 {
		t.Errorf("inner wall normal %v points away from the axis", n)
	}

	if _, err := k.Tube("bad", 20, 5, 5); err == nil {
		t.Error("Tube() with inner == outer should fail")
	}
}

func TestSphere(t *testing.T) {
	k := New()
	s, err := k.Sphere("ball", 3)
	if err != nil {
		t.Fatalf("Sphere() error = %v", err)
	}
	if len(s.Faces) != 1 || len(s.Edges()) != 3 || len(s.Vertices()) != 2 {
		t.Fatalf("sphere has %d faces, %d edges, %d vertices, want 1, 3, 2",
			len(s.Faces), len(s.Edges()), len(s.Vertices()))
	}
	degenerate := 0
	for _, e := range s.Edges() {
		if e.Degenerate {
			degenerate++
		}
	}
	if degenerate != 2 {
		t.Errorf("sphere has %d degenerate edges, want 2", degenerate)
	}
	checkFace(t, s.Faces[0])
	p, n := outwardNormal(t, s.Faces[0])
	if n.Dot(p) <= 0 {
		t.Errorf("sphere normal %v points inward", n)
	}
}

func TestInvalidDimensions(t *testing.T) {
	k := New()
	if _, err := k.Box("b", 0, 1, 1); err == nil {
		t.Error("Box() with a zero side should fail")
	}
	if _, err := k.Cylinder("c", 1, -1); err == nil {
		t.Error("Cylinder() with a negative radius should fail")
	}
	if _, err := k.Sphere("s", math.NaN()); err == nil {
		t.Error("Sphere() with a NaN radius should fail")
	}
}

func TestIDsAreStable(t *testing.T) {
	k := New()
	a, _ := k.Box("shelf", 1, 2, 3)
	b, _ := k.Box("shelf", 1, 2, 3)
	c, _ := k.Box("door", 1, 2, 3)
	if a.ID() != b.ID() {
		t.Error("same name should give the same shape ID")
	}
	if a.ID() == c.ID() {
		t.Error("different names should give different shape IDs")
	}
	for i := range a.Faces {
		if a.Faces[i].ID() != b.Faces[i].ID() {
			t.Errorf("face %d ID differs between builds", i)
		}
		if a.Faces[i].Fingerprint() != b.Faces[i].Fingerprint() {
			t.Errorf("face %d fingerprint differs between builds", i)
		}
	}
}

func TestTranslate(t *testing.T) {
	k := New()
	s, _ := k.Box("b", 1, 1, 1)
	moved := k.Translate(s, 10, 0, 0)
	if moved.ID() != s.ID() {
		t.Error("Translate() should keep the shape ID")
	}
	bb := moved.BoundingBox()
	if math.Abs(bb.Min.X-10) > 1e-9 || math.Abs(bb.Max.X-11) > 1e-9 {
		t.Errorf("translated x range = [%g, %g], want [10, 11]", bb.Min.X, bb.Max.X)
	}
	for _, f := range moved.Faces {
		checkFace(t, f)
	}
}

func TestRotate(t *testing.T) {
	k := New()
	s, _ := k.Box("b", 4, 1, 1)
	rotated := k.Rotate(s, 0, 0, 90)
	bb := rotated.BoundingBox()
	if math.Abs(bb.Max.Y-bb.Min.Y-4) > 1e-9 {
		t.Errorf("rotated y extent = %g, want 4", bb.Max.Y-bb.Min.Y)
	}
	if math.Abs(bb.Max.X-bb.Min.X-1) > 1e-9 {
		t.Errorf("rotated x extent = %g, want 1", bb.Max.X-bb.Min.X)
	}
	for _, f := range rotated.Faces {
		checkFace(t, f)
	}
}
