package triangulate

import (
	"math"
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/pkg/errors"
)

// bridgeHoles splices every hole into the outer ring through a bridge edge
// walked in both directions, giving a single weakly simple ring.
func (t *triangulation) bridgeHoles(outer []int, holes [][]int) ([]int, error) {
	ring := append([]int(nil), outer...)
	if len(holes) == 0 {
		return ring, nil
	}

	rightmost := func(h []int) int {
		best := 0
		for k, i := range h {
			q, b := t.uv[i], t.uv[h[best]]
			if q.X > b.X || (q.X == b.X && q.Y < b.Y) {
				best = k
			}
		}
		return best
	}
	pending := append([][]int(nil), holes...)
	sort.SliceStable(pending, func(i, j int) bool {
		return t.uv[pending[i][rightmost(pending[i])]].X > t.uv[pending[j][rightmost(pending[j])]].X
	})

	for hi, h := range pending {
		m := rightmost(h)
		mi := h[m]
		best, bestDist := -1, math.Inf(1)
		for k, pi := range ring {
			d := t.uv[pi].Sub(t.uv[mi]).Length()
			if d >= bestDist {
				continue
			}
			if !t.locallyInside(ring, k, t.uv[mi]) {
				continue
			}
			if t.blocked(pi, mi, ring, pending[hi:]) {
				continue
			}
			best, bestDist = k, d
		}
		if best < 0 {
			return nil, errors.Wrapf(ErrTriangulation, "hole %d cannot be bridged to the boundary", hi)
		}

		spliced := make([]int, 0, len(ring)+len(h)+2)
		spliced = append(spliced, ring[:best+1]...)
		spliced = append(spliced, h[m:]...)
		spliced = append(spliced, h[:m]...)
		spliced = append(spliced, mi, ring[best])
		spliced = append(spliced, ring[best+1:]...)
		ring = spliced
	}
	return ring, nil
}

// locallyInside reports whether the direction from ring[k] towards q
// enters the ring's interior at that vertex.
func (t *triangulation) locallyInside(ring []int, k int, q v2.Vec) bool {
	n := len(ring)
	a := t.uv[ring[k]]
	prev, next := t.uv[ring[(k-1+n)%n]], t.uv[ring[(k+1)%n]]
	d := q.Sub(a)
	toNext, toPrev := next.Sub(a), prev.Sub(a)
	if orient(prev, a, next) > 0 {
		return cross(toNext, d) > 0 && cross(d, toPrev) > 0
	}
	return cross(toPrev, d) < 0 || cross(d, toNext) < 0
}

func cross(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// blocked reports whether the segment p-m crosses an edge of the ring or
// of a hole, or passes through one of their vertices.
func (t *triangulation) blocked(p, m int, ring []int, holes [][]int) bool {
	loops := append([][]int{ring}, holes...)
	for _, l := range loops {
		for k := range l {
			x, y := l[k], l[(k+1)%len(l)]
			if x == p || x == m || y == p || y == m {
				continue
			}
			if t.segmentsCross(p, m, x, y) {
				return true
			}
		}
	}
	return false
}

func (t *triangulation) segmentsCross(p, m, x, y int) bool {
	P, M, X, Y := t.uv[p], t.uv[m], t.uv[x], t.uv[y]
	o1, o2 := orient(P, M, X), orient(P, M, Y)
	o3, o4 := orient(X, Y, P), orient(X, Y, M)
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	return (o1 == 0 && onSegment(P, M, X)) || (o2 == 0 && onSegment(P, M, Y))
}

// onSegment reports whether q, collinear with a-b, lies strictly between
// them.
func onSegment(a, b, q v2.Vec) bool {
	d := b.Sub(a)
	s := q.Sub(a).Dot(d)
	return s > 0 && s < d.Dot(d)
}

// earClip triangulates a counter-clockwise ring. A strict pass only clips
// ears with no other ring vertex in or on them; a relaxed pass tolerates
// vertices on the ear's edges.
func (t *triangulation) earClip(ring []int) error {
	ring = append([]int(nil), ring...)
	ext := t.extent()
	eps := 1e-14 * ext * ext
	start := 0
	for len(ring) > 3 {
		clipped := -1
		for _, strict := range []bool{true, false} {
			for off := 0; off < len(ring); off++ {
				i := (start + off) % len(ring)
				if t.isEar(ring, i, strict, eps) {
					clipped = i
					break
				}
			}
			if clipped >= 0 {
				break
			}
		}
		if clipped < 0 {
			return errors.Wrapf(ErrTriangulation, "no ear among %d remaining vertices", len(ring))
		}
		n := len(ring)
		t.tris = append(t.tris, tri{v: [3]int{ring[(clipped-1+n)%n], ring[clipped], ring[(clipped+1)%n]}})
		ring = append(ring[:clipped], ring[clipped+1:]...)
		start = (clipped - 1 + len(ring)) % len(ring)
	}
	if orient(t.uv[ring[0]], t.uv[ring[1]], t.uv[ring[2]]) <= eps {
		return errors.Wrap(ErrTriangulation, "last ear is degenerate")
	}
	t.tris = append(t.tris, tri{v: [3]int{ring[0], ring[1], ring[2]}})
	return nil
}

func (t *triangulation) isEar(ring []int, i int, strict bool, eps float64) bool {
	n := len(ring)
	ai, bi, ci := ring[(i-1+n)%n], ring[i], ring[(i+1)%n]
	if ai == ci {
		return false
	}
	a, b, c := t.uv[ai], t.uv[bi], t.uv[ci]
	if orient(a, b, c) <= eps {
		return false
	}
	for _, xi := range ring {
		if xi == ai || xi == bi || xi == ci {
			continue
		}
		x := t.uv[xi]
		o1, o2, o3 := orient(a, b, x), orient(b, c, x), orient(c, a, x)
		if strict {
			if o1 >= -eps && o2 >= -eps && o3 >= -eps {
				return false
			}
		} else if o1 > eps && o2 > eps && o3 > eps {
			return false
		}
	}
	return true
}
