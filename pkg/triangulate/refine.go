package triangulate

import (
	"github.com/chazu/brepmesh/pkg/discretize"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

type splitKind int

const (
	noSplit splitKind = iota
	centroidSplit
	edgeSplit
)

type split struct {
	kind splitKind
	slot int
	uv   v2.Vec
	p    v3.Vec
}

// refine inserts interior points in passes until no triangle deviates from
// the surface by more than the deflection or bends by more than the angle.
// Triangles changed during a pass are only revisited in the next one.
//
// Triangles that span a seam or touch a pole, so that two corners are the
// same mesh node, are split as well: otherwise the whole face would collapse
// when it is committed.
func (t *triangulation) refine() error {
	ext := t.extent()
	minArea := 1e-10 * ext * ext

	for pass := 0; pass < t.in.MaxPasses; pass++ {
		t.touched = make(map[int]bool)
		count := len(t.tris)
		changed := false
		for ti := 0; ti < count; ti++ {
			if t.touched[ti] {
				continue
			}
			if len(t.uv)-t.boundary >= t.in.MaxPoints {
				t.truncated = true
				return nil
			}
			s, err := t.assess(ti, minArea)
			if err != nil {
				return err
			}
			switch s.kind {
			case centroidSplit:
				t.splitCentroid(ti, t.addInterior(s.uv, s.p))
			case edgeSplit:
				t.splitEdge(ti, s.slot, t.addInterior(s.uv, s.p))
			default:
				continue
			}
			changed = true
		}
		if !changed {
			t.touched = nil
			return nil
		}
	}
	t.touched = nil
	t.truncated = true
	return nil
}

func (t *triangulation) eval(uv v2.Vec) (v3.Vec, error) {
	sp, err := t.in.Surface.Evaluate(uv.X, uv.Y)
	if err != nil {
		return v3.Vec{}, errors.Wrapf(discretize.ErrEvaluation, "surface at (%g, %g): %v", uv.X, uv.Y, err)
	}
	return sp.P, nil
}

// assess decides how triangle ti should be split, if at all.
func (t *triangulation) assess(ti int, minArea float64) (split, error) {
	tr := t.tris[ti]
	a, b, c := tr.v[0], tr.v[1], tr.v[2]
	ua, ub, uc := t.uv[a], t.uv[b], t.uv[c]
	if orient(ua, ub, uc)/2 < minArea {
		return split{}, nil
	}
	if s := t.collapsed(tr); s >= 0 {
		return t.separate(tr, s)
	}
	if !(t.in.Deflection > 0) {
		return split{}, nil
	}
	pa, pb, pc := t.p[a], t.p[b], t.p[c]
	defl := t.in.Deflection

	uvc := ua.Add(ub).Add(uc).MulScalar(1.0 / 3)
	sc, err := t.eval(uvc)
	if err != nil {
		return split{}, err
	}
	if sc.Sub(pa.Add(pb).Add(pc).MulScalar(1.0/3)).Length() > defl {
		return split{kind: centroidSplit, uv: uvc, p: sc}, nil
	}

	worst := split{}
	worstDev := defl
	for s := 0; s < 3; s++ {
		x, y := tr.v[s], tr.v[(s+1)%3]
		if tr.n[s] < 0 || t.isFixed(x, y) {
			continue
		}
		uvm := t.uv[x].Add(t.uv[y]).MulScalar(0.5)
		sm, err := t.eval(uvm)
		if err != nil {
			return split{}, err
		}
		if dev := sm.Sub(t.p[x].Add(t.p[y]).MulScalar(0.5)).Length(); dev > worstDev {
			worst, worstDev = split{kind: edgeSplit, slot: s, uv: uvm, p: sm}, dev
		}
	}
	if worst.kind != noSplit {
		return worst, nil
	}

	size := max(pa.Sub(pb).Length(), pb.Sub(pc).Length(), pc.Sub(pa).Length())
	if size <= defl || !(t.in.Angle > 0) {
		return split{}, nil
	}
	ang, err := discretize.NormalAngle(t.in.Surface, ua, ub, uc)
	if err != nil {
		return split{}, err
	}
	if ang > t.in.Angle {
		return split{kind: centroidSplit, uv: uvc, p: sc}, nil
	}
	return split{}, nil
}

// collapsed returns the slot of an edge of tr whose ends are the same mesh
// node, or -1.
func (t *triangulation) collapsed(tr tri) int {
	for s := 0; s < 3; s++ {
		if t.node(tr.v[s]) == t.node(tr.v[(s+1)%3]) {
			return s
		}
	}
	return -1
}

// separate splits the interior edge at slot s of a collapsed triangle at its
// parameter-space midpoint, which is a distinct point on the surface. A
// fixed collapsed edge is a pole or seam segment of the boundary; its
// triangle is degenerate in 3D and is dropped at commit.
func (t *triangulation) separate(tr tri, s int) (split, error) {
	x, y := tr.v[s], tr.v[(s+1)%3]
	if t.isFixed(x, y) || tr.n[s] < 0 {
		return split{}, nil
	}
	uvm := t.uv[x].Add(t.uv[y]).MulScalar(0.5)
	p, err := t.eval(uvm)
	if err != nil {
		return split{}, err
	}
	return split{kind: edgeSplit, slot: s, uv: uvm, p: p}, nil
}
